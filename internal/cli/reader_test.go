package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonBlockingReader_ReadLine(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedValue string
		expectError   bool
	}{
		{
			name:          "successful read",
			input:         "owner@example.com\n",
			expectedValue: "owner@example.com",
		},
		{
			name:          "surrounding whitespace",
			input:         "  tok_abc123  \n",
			expectedValue: "tok_abc123",
		},
		{
			name:          "last line without newline",
			input:         "tok_abc123",
			expectedValue: "tok_abc123",
		},
		{
			name:        "empty input",
			input:       "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nbr := NewNonBlockingReader(strings.NewReader(tt.input))

			result, err := nbr.ReadLine(context.Background())
			if tt.expectError {
				assert.ErrorIs(t, err, io.EOF)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, result)
		})
	}
}

func TestNonBlockingReader_ContextCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()
	defer func() { _ = pw.Close() }()

	nbr := NewNonBlockingReader(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := nbr.ReadLine(ctx)
	assert.Equal(t, ErrInputCancelled, err)
}

func TestNonBlockingReader_Prompt(t *testing.T) {
	var out bytes.Buffer
	nbr := NewNonBlockingReader(strings.NewReader("owner@example.com\nsecond\n"))

	got, err := nbr.Prompt(context.Background(), &out, "Email")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", got)
	assert.Contains(t, out.String(), "Email")

	next, err := nbr.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", next)
}
