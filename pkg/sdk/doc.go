// Package panelscope embeds the panel retrieval and insight engine in a Go
// program without running the HTTP server.
//
// The client opens its own relational pool and vector store, resolves query
// intents into panel records and ranks charts for them:
//
//	client, _ := panelscope.New(ctx,
//	    panelscope.WithPostgres("postgres://panels@localhost/panels"),
//	    panelscope.WithValkey("localhost:6379", ""),
//	    panelscope.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "text-embedding-3-small", 1536),
//	)
//	defer client.Close()
//
//	q := panelscope.Intent{
//	    Filter:   map[string]panelscope.Condition{"gender": panelscope.Match("F")},
//	    Positive: []string{"uses several OTT services"},
//	    Negative: []string{"does not own a pet"},
//	}
//	res, _ := client.Resolve(ctx, q)
//	res, charts, _ := client.Insights(ctx, q, 5)
//
// A configuration file in the server format can be used instead of options:
//
//	client, _ := panelscope.New(ctx, panelscope.WithConfigFile("config/local.yaml"))
package panelscope
