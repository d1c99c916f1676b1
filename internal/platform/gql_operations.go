package platform

// Persisted-query operation table covering channel lookup, stream status,
// points balance, predictions context, and the current-user query.

type PersistedQuery struct {
	Version    int    `json:"version"`
	Sha256Hash string `json:"sha256Hash"`
}

type PersistedExtensions struct {
	PersistedQuery PersistedQuery `json:"persistedQuery"`
}

type Operation struct {
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	Extensions    PersistedExtensions    `json:"extensions"`
}

func (op Operation) WithVariables(vars map[string]interface{}) Operation {
	merged := make(map[string]interface{}, len(op.Variables)+len(vars))
	for k, v := range op.Variables {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	op.Variables = merged
	return op
}

func newOp(name, hash string, vars map[string]interface{}) Operation {
	return Operation{
		OperationName: name,
		Variables:     vars,
		Extensions: PersistedExtensions{
			PersistedQuery: PersistedQuery{Version: 1, Sha256Hash: hash},
		},
	}
}

const GQLURL = "https://gql.twitch.tv/gql"

var Operations = struct {
	GetIDFromLogin                 Operation
	StreamMetadata                 Operation
	ChannelPointsContext           Operation
	ChannelPointsPredictionContext Operation
	MakePrediction                 Operation
	ClaimCommunityPoints           Operation
	JoinRaid                       Operation
	CoreActionsCurrentUser         Operation
	ChannelFollows                 Operation
}{
	GetIDFromLogin: newOp("GetIDFromLogin", "94e82a7b1e3c21e186daa73ee2afc4b8f23bade1fbbff6fe8ac133f50a2f58ca", map[string]interface{}{
		"login": nil,
	}),
	StreamMetadata: newOp("VideoPlayerStreamInfoOverlayChannel", "a5f2e34d626a9f4f5c0204f910bab2194948a9502089be558bb6e779a9e1b3d2", nil),
	ChannelPointsContext: newOp("ChannelPointsContext", "1530a003a7d374b0380b79db0be0534f30ff46e61cffa2bc0e2468a909fbc024", nil),
	ChannelPointsPredictionContext: newOp("ChannelPointsPredictionContext", "55f5fce1e7bde33efc1d0c7ac2ee9d4ec2843f4f03e5c88fbe6d43d6fac1cb49", nil),
	MakePrediction: newOp("MakePrediction", "b44682ecc88358817009f20e69d75081b1e58825bb40aa53d5dbadcc17c881d8", nil),
	ClaimCommunityPoints: newOp("ClaimCommunityPoints", "46aaeebe02c99afdf4fc97c7c0cba964124bf6b0af229395f1f6d1feed05b3d0", nil),
	JoinRaid: newOp("JoinRaid", "c6a332a86d1087fbbb1a8623aa01bd1313d2386e7c63be60fdb2d1901f01a4ae", nil),
	CoreActionsCurrentUser: newOp("CoreActionsCurrentUser", "6b0fabc1b3fb935e8233ea3c84b9ef56c287a6912458c1d161fd41348e7a277", nil),
	ChannelFollows: newOp("ChannelFollows", "eecf815273d3d949e5cf0085cc5084cd8a1b5b7b6f7990cf43cb0beadf546907", map[string]interface{}{
		"limit": 100,
		"order": "ASC",
	}),
}

const (
	ClientID      = "ue6666qo983tsx6so1t0vnawi233wa"
	ClientVersion = "ef928475-9403-42f2-8a34-55784bd08e16"
	TwitchURL     = "https://www.twitch.tv"
	PubSubURL     = "wss://pubsub-edge.twitch.tv/v1"
)
