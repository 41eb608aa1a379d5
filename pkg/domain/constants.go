package domain

// Reserved context keys written by the engine.
const (
	KeyAPIError             = "api_error"
	KeyAISessionID          = "ai_session_id"
	KeyMediaURL             = "media_url"
	KeyMediaLocalPath       = "media_local_path"
	KeyProcessedMediaResult = "processed_media_result"
)

// MaxChainHops bounds consecutive auto-chained nodes within one turn.
const MaxChainHops = 50
