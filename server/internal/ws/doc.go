// Package ws implements the WebSocket hub that streams fleet statistics.
//
// Hub manages a set of connected clients and broadcasts the current
// statistics to all of them on a configurable interval, and immediately
// after Notify is called (the API calls it whenever the catalog changes).
//
// New(source, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast loop. It blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// statistics immediately on connect, then streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event":        "statistics",
//	  "generated_at": "2024-05-01T12:00:00Z",
//	  "data":         { /* same schema as GET /api/machines/statistics */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
