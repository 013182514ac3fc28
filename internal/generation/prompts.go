package generation

// Default prompts for question answering over retrieved tables.
const (
	QASystemPrompt = "You are a data analyst who reads tables to answer questions."
	QAUserTemplate = "Table: %s\nQuery: %s"
)

// Text-to-SQL prompts. The answer format carries the predicted database id
// so the evaluator knows which database file to execute against.
const (
	Text2SQLSystemPrompt = "You are an expert SQL developer. Given the schemas of the candidate " +
		"database tables and a natural language question, write a single sqlite " +
		"query that answers the question. Respond with the sqlite query, a tab " +
		"character, and the id of the database the query should run against. " +
		"Output nothing else."
	Text2SQLUserTemplate = "Database schemas:\n%s\nQuestion: %s"
)
