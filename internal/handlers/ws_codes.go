// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the session socket.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	InvalidSessionIDError websocket.StatusCode = 3003 // Session in the URL does not exist.
	SessionExpiredCode    websocket.StatusCode = 3004 // Session expired while waiting for a partner.
)
