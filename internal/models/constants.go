package models

const (
	RemoteProviderName = "GitHub Models (OpenAI)"
	LocalProviderName  = "Ollama (Local)"

	// RemoteProviderKeyword is looked up in error text to pick troubleshooting hints.
	RemoteProviderKeyword = "GitHub"

	PreviewChunks    = 3
	TextPreviewChars = 250

	MetadataChunkIndex = "chunk_index"
)

var (
	RemoteTroubleshooting = []string{
		"Check your GitHub token in .env file",
		"Make sure you have internet connection",
	}
	FallbackTroubleshooting = []string{
		"Try switching to the other embedding method",
	}
)
