// Package ws implements the WebSocket hub for netsentryd.
//
// Hub manages a set of connected clients and pushes every computed health
// snapshot to all of them. Delivery is event-driven: the hub registers as a
// monitor listener, so clients see a message per sampling tick.
//
// New(mon) creates a Hub.
// Hub.Run(ctx) blocks until ctx is cancelled, then closes all connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the latest
// snapshot immediately on connect, then streams new snapshots as they land.
//
// Message format sent to clients:
//
//	{
//	  "event": "health",
//	  "data":  { /* same schema as the snapshot in GET /api/v1/health */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The WebSocket endpoint is mounted at /ws/stream by the daemon.
package ws
