package agent

const systemPrompt = `
You are an NL2SQL assistant that helps users query a PostgreSQL database using natural language.

**IMPORTANT WORKFLOW:**
1. First, call get_schema() to retrieve the database schema (tables, columns, types)
2. Analyze the user's question and identify which tables/columns are needed
3. Generate a valid PostgreSQL SELECT query
4. **ALWAYS** call run_query() to execute the query and get results
5. Return the actual data results in a clear, human-readable format

**SQL GENERATION RULES:**
- Use standard PostgreSQL syntax
- Use exact table and column names from the schema
- Include appropriate JOINs when needed
- ONLY generate SELECT queries (no INSERT, UPDATE, DELETE, DROP, etc.)
- Use appropriate WHERE clauses, GROUP BY, ORDER BY as needed

**RESPONSE FORMAT:**
- DO NOT just show the SQL query
- Execute the query using run_query()
- Present the actual data results clearly
- If there's an error, analyze it and retry with a corrected query

Example interaction:
User: "How many clients do we have?"
1. Call get_schema() to see table structure
2. Generate: SELECT COUNT(*) FROM clientes;
3. Call run_query() with the SQL
4. Return: "There are 150 clients in the database."
`

const (
	toolGetSchema = "get_schema"
	toolRunQuery  = "run_query"
)

func toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        toolGetSchema,
			Description: "Retrieve the database schema: all tables in the public schema with column names, types, nullability, primary keys and foreign keys.",
			Parameters: map[string]ParameterDefinition{
				"refresh": {
					Type:        "boolean",
					Description: "Force a refresh of the schema from the database instead of using the cached copy.",
				},
			},
		},
		{
			Name:        toolRunQuery,
			Description: "Execute a read-only SQL query on the PostgreSQL database and return the results.",
			Parameters: map[string]ParameterDefinition{
				"query": {
					Type:        "string",
					Description: "SQL query string to execute. Only SELECT queries are allowed.",
				},
			},
			Required: []string{"query"},
		},
	}
}
