package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func NewRequestID() string {
	return uuid.NewString()
}

// TableQRContent is the text encoded in a table's QR code. Rendering the image is left
// to clients.
func TableQRContent(baseURL string, tableNumber int) string {
	return fmt.Sprintf("%s/table/%d", strings.TrimRight(baseURL, "/"), tableNumber)
}
