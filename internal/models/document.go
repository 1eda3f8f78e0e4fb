package models

// Document is an uploaded file and the plain text extracted from it.
type Document struct {
	Name  string
	Data  []byte
	Text  string
	Pages int
}

// Chunk represents a bounded piece of document text, in document order.
type Chunk struct {
	Index   int
	Content string
}

// Match is a chunk returned by a similarity search.
type Match struct {
	Chunk      Chunk
	Similarity float32
}

// KnowledgeBaseInfo summarises a built knowledge base for display.
type KnowledgeBaseInfo struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Vectors   int    `json:"vectors"`
	Dimension int    `json:"dimension"`
	Chunks    int    `json:"chunks"`
}
