package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/tjfontaine/persona-chat-gateway/internal/gate"
)

// secretBytes matches the BLAKE2b key size used by the rate limiter.
const secretBytes = 32

func main() {
	switch len(os.Args) {
	case 1:
		secret := make([]byte, secretBytes)
		if _, err := rand.Read(secret); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read random bytes: %v\n", err)
			os.Exit(1)
		}
		s := hex.EncodeToString(secret)
		fmt.Printf("Hash secret: %s\n", s)
		fmt.Println("\nAdd this to your config.yaml (or set CHATGATE_GATE__HASH_SECRET):")
		fmt.Printf("  gate:\n")
		fmt.Printf("    hash_secret: \"%s\"\n", s)
	case 3:
		// Reproduce the rate-limit key for a client address, e.g. to find
		// its window in debug logs.
		secret, client := os.Args[1], os.Args[2]
		fmt.Printf("Client: %s\n", client)
		fmt.Printf("Rate limit key: %s\n", gate.NewRateLimiter(secret).HashKey(client))
	default:
		fmt.Println("Usage: go run cmd/keygen/main.go [<hash-secret> <client-ip>]")
		fmt.Println("Without arguments, generates a random gate.hash_secret.")
		fmt.Println("With a secret and client IP, prints the hashed rate limit key.")
		os.Exit(1)
	}
}
