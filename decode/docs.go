package decode

// apiDocs é a descrição estática servida em GET /api/docs.
var apiDocs = map[string]any{
	"title":   "Video URL Decoder Gateway",
	"version": "1.0.0",
	"endpoints": map[string]any{
		"POST /api/decode": map[string]any{
			"description": "Decode a single base64-encoded video URL",
			"payload": map[string]string{
				"encodedUrl": "string (required) - base64-encoded video URL",
				"credential": "string (required) - caller credential",
				"videoId":    "string (optional) - video identifier",
			},
			"response": map[string]string{
				"ok":          "boolean",
				"playableUrl": "string - playable video URL",
				"decodedUrl":  "string - decoded URL",
				"videoId":     "string",
			},
		},
		"POST /api/batch-decode": map[string]any{
			"description": "Decode multiple base64-encoded video URLs",
			"payload": map[string]string{
				"credential": "string (required) - caller credential",
				"urls":       "array (required) - items with encodedUrl and optional videoId",
			},
		},
		"POST /api/validate-token": map[string]any{
			"description": "Validate a caller credential",
			"payload": map[string]string{
				"credential": "string (required) - caller credential",
			},
		},
		"GET /api": map[string]any{
			"description": "Build a playable URL for an already-decoded video URL",
			"parameters": map[string]string{
				"url":        "string (required) - absolute video URL",
				"credential": "string (required) - caller credential",
			},
		},
	},
	"errorKinds": map[string]string{
		"malformed_input":      "payload is not valid base64/JSON or not an absolute URL",
		"invalid_credential":   "credential was rejected by the identity service",
		"upstream_unavailable": "identity service is unreachable; safe to retry",
		"rate_limited":         "caller must back off for retryAfter seconds",
	},
}
