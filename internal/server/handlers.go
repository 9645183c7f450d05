package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance and hands it to the hub, which
// starts the client's read/write pumps.
func (a *App) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(conn, a.hub, r.RemoteAddr)
	if !a.hub.Register(client) {
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoChat server is running!")
}

type healthStatus struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Sessions    int    `json:"sessions"`
}

// HealthzHandler reports connection and session counts as JSON.
func (a *App) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthStatus{
		Status:      "ok",
		Connections: a.hub.ClientCount(),
		Sessions:    a.registry.Len(),
	})
}

// TestPageHandler serves an HTML test page for exercising the WebSocket
// protocol by hand: authenticate with a token, send direct messages and
// watch presence updates.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		zap.L().Warn("error writing HTML response", zap.Error(err))
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>GoChat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        #toInput { width: 80px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>GoChat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="tokenInput" placeholder="Session token">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="toInput" placeholder="To (user id)" disabled>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const tokenInput = document.getElementById('tokenInput');
        const toInput = document.getElementById('toInput');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.margin = '3px 0';
            line.style.color = color || 'gray';
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected, label) {
            statusDiv.textContent = label;
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            toInput.disabled = !connected;
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                ws.send(JSON.stringify({ type: 'auth', token: tokenInput.value.trim() }));
                updateStatus(true, 'Authenticating...');
            };

            ws.onmessage = function(event) {
                const env = JSON.parse(event.data);
                if (env.type === 'auth_success') {
                    updateStatus(true, 'Connected as ' + env.username + ' (' + env.userId + ')');
                }
                addLine('<- ' + event.data, env.type === 'message' ? 'green' : 'black');
            };

            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false, 'Disconnected');
                ws = null;
            };

            ws.onerror = function() {
                addLine('Connection error');
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const content = messageInput.value.trim();
            const to = toInput.value.trim();
            if (!content || !to || !ws || ws.readyState !== WebSocket.OPEN) {
                return;
            }
            const env = { type: 'message', to: to, content: content };
            ws.send(JSON.stringify(env));
            addLine('-> ' + JSON.stringify(env), 'blue');
            messageInput.value = '';
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
