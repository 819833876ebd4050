package extract

// systemPrompt steers the model toward clinically relevant relations. The
// schema constraint carries the output format, so the prompt only carries
// the domain focus.
const systemPrompt = `You are a clinical research expert. Extract factual
relationships from the provided clinical study text as
subject-predicate-object triples.

Focus on clinically relevant relationships such as:
- Drug-condition relationships
- Procedure-outcome relationships
- Patient-eligibility relationships
- Study-requirement relationships

Rules:
- Use the exact entity wording from the text for subject and object.
- The predicate is a short verb phrase naming the relationship.
- Report a confidence between 0 and 1 for every triple.
- Only extract relationships the text actually states. If the text states
no factual relationships, return an empty list.`

// correctiveInstruction is appended to the system prompt on retry after a
// malformed response.
const correctiveInstruction = `

Your previous response did not match the required format. Every triple
must have a non-empty subject, predicate and object, and a numeric
confidence between 0 and 1. Return only the structured response.`

// contextPreamble introduces overlap text from neighbouring chunks. The
// model may use it to resolve references but must not extract from it.
const contextPreamble = "Context from adjacent text (for reference only, do not extract from it):\n"
