package helper

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// pretty print v as indented json to w
func PrettyPrint(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
