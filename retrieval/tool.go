package retrieval

import (
	"context"
	"fmt"

	"github.com/dataninja/ragchat/logging"
	"github.com/dataninja/ragchat/tool"
)

// RetrieveArgs are the arguments of the retrieve_context tool.
type RetrieveArgs struct {
	Query string `json:"query" description:"The search query to find relevant context for"`
}

// RetrieveToolOptions configure the retrieve_context tool.
type RetrieveToolOptions struct {
	// TopK is the number of context items returned per query.
	TopK int
	// Logger receives structured tool events.
	Logger logging.Logger
}

// NewRetrieveTool wraps a Retriever as a registry tool named
// "retrieve_context". Retrieval failures degrade to an empty result list so a
// broken store never aborts an agent run; the failure is only logged.
func NewRetrieveTool(retriever Retriever, optFns ...func(o *RetrieveToolOptions)) *tool.FunctionTool {
	opts := RetrieveToolOptions{
		TopK:   3,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	fn := func(ctx context.Context, args map[string]any) (any, error) {
		query, ok := args["query"].(string)
		if !ok {
			return nil, fmt.Errorf("query must be a string")
		}

		results, err := retriever.Retrieve(ctx, query, opts.TopK)
		if err != nil {
			opts.Logger.Warn("retrieve_context failed, returning empty results", "error", err)
			return []Result{}, nil
		}
		if results == nil {
			results = []Result{}
		}
		opts.Logger.Debug("retrieve_context", "query_length", len(query), "results", len(results))
		return results, nil
	}

	return tool.NewFunctionToolFromStruct(
		"retrieve_context",
		"Search the knowledge base for documents relevant to a query and return the most similar passages. Use this whenever the answer may depend on ingested documents.",
		RetrieveArgs{},
		fn,
		func(o *tool.FunctionToolOptions) { o.Logger = opts.Logger },
	)
}
