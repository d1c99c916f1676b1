package httpapi

// openAPISpec describes the control-plane surface served at /docs. It is
// hand-maintained rather than generated: keep it in sync with routes().
const openAPISpec = `{
  "openapi": "3.0.3",
  "info": {
    "title": "pointskeeper control plane",
    "version": "1.0.0",
    "description": "Broadcaster state, prediction overrides, config presets and analytics timeline for a running pointskeeper agent."
  },
  "paths": {
    "/api": {
      "get": { "summary": "Snapshot every tracked broadcaster.", "responses": { "200": { "description": "OK" } } }
    },
    "/api/streamers/{name}": {
      "get": {
        "summary": "Snapshot a single broadcaster by name.",
        "parameters": [{ "name": "name", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "200": { "description": "OK" }, "404": { "description": "unknown streamer" } }
      }
    },
    "/api/streamers/live": {
      "get": { "summary": "List names of currently live broadcasters.", "responses": { "200": { "description": "OK" } } }
    },
    "/api/streamers/mine/{name}": {
      "put": {
        "summary": "Add a broadcaster to the config file. The running registry is not updated; the broadcaster is tracked from the next start.",
        "parameters": [{ "name": "name", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "201": { "description": "created" }, "409": { "description": "already configured" } }
      },
      "delete": {
        "summary": "Remove a broadcaster from the watch set.",
        "parameters": [{ "name": "name", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "204": { "description": "removed" }, "404": { "description": "unknown streamer" } }
      }
    },
    "/api/predictions/bet/{streamer}": {
      "post": {
        "summary": "Mark a tracked prediction event as bet on and record the bet in analytics. No bet RPC is sent to the platform.",
        "parameters": [{ "name": "streamer", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "202": { "description": "accepted" }, "404": { "description": "unknown streamer" } }
      }
    },
    "/api/predictions/live": {
      "get": { "summary": "List open predictions across all tracked broadcasters.", "responses": { "200": { "description": "OK" } } }
    },
    "/api/config/presets": {
      "get": { "summary": "List saved strategy presets.", "responses": { "200": { "description": "OK" } } },
      "post": { "summary": "Save a strategy preset.", "responses": { "201": { "description": "created" } } }
    },
    "/api/config/presets/{name}": {
      "delete": {
        "summary": "Delete a strategy preset.",
        "parameters": [{ "name": "name", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "204": { "description": "removed" } }
      }
    },
    "/api/config/streamer/{name}": {
      "post": {
        "summary": "Update a broadcaster's per-streamer config.",
        "parameters": [{ "name": "name", "in": "path", "required": true, "schema": { "type": "string" } }],
        "responses": { "200": { "description": "OK" } }
      }
    },
    "/api/config/watch_priority": {
      "get": { "summary": "Get the watch-loop priority list.", "responses": { "200": { "description": "OK" } } },
      "post": { "summary": "Replace the watch-loop priority list.", "responses": { "200": { "description": "OK" } } }
    },
    "/api/analytics/timeline": {
      "post": { "summary": "Run the point-balance timeline query: per-row balance and delta for one channel. Prediction rows are not joined.", "responses": { "200": { "description": "OK" } } }
    },
    "/api/logs": {
      "get": { "summary": "Paginated, ANSI-rendered-to-HTML recent log lines.", "responses": { "200": { "description": "OK" } } }
    },
    "/metrics": {
      "get": { "summary": "Prometheus exposition.", "responses": { "200": { "description": "OK" } } }
    }
  }
}`
