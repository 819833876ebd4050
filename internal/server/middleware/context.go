package middleware

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/irt-labs/studygraph/internal/util"
	"github.com/irt-labs/studygraph/pkg/ai"
	oai "github.com/irt-labs/studygraph/pkg/ai/ollama"
	gai "github.com/irt-labs/studygraph/pkg/ai/openai"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/stats"
)

// App bundles every shared client a handler can reach through the request
// context.
type App struct {
	DBConn     *pgxpool.Pool
	Queue      *amqp091.Channel
	S3         *s3.Client
	MetaDB     *mongo.Database
	AiClient   ai.GraphAIClient
	Aggregator *stats.Aggregator
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(
	db *pgxpool.Pool,
	queue *amqp091.Channel,
	s3Client *s3.Client,
	metaDB *mongo.Database,
	aggregator *stats.Aggregator,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			adapter := util.GetEnv("AI_ADAPTER")
			var aiClient ai.GraphAIClient

			switch adapter {
			case "ollama":
				client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
					EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
					ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

					BaseURL: util.GetEnv("AI_CHAT_URL"),
					ApiKey:  util.GetEnv("AI_CHAT_KEY"),
				})
				if err != nil {
					logger.Fatal("Failed to create Ollama client", "err", err)
				}
				aiClient = client
			default:
				aiClient = gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
					EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
					ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

					EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
					EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
					ChatURL:      util.GetEnv("AI_CHAT_URL"),
					ChatKey:      util.GetEnv("AI_CHAT_KEY"),
				})
			}

			app := &App{
				DBConn:     db,
				Queue:      queue,
				S3:         s3Client,
				MetaDB:     metaDB,
				AiClient:   aiClient,
				Aggregator: aggregator,
			}
			return next(&AppContext{
				Context: c,
				App:     app,
			})
		}
	}
}
