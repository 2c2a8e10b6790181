// Command create_admin prints the operator credential lines for the .env
// file. The password is stored as a bcrypt hash; the server never needs
// the plain value.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"almondsense/internal/util"
)

func main() {
	username := flag.String("username", "admin", "operator username")
	password := flag.String("password", "", "operator password (generated when empty)")
	flag.Parse()

	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(os.Stderr, "username must not be empty")
		os.Exit(2)
	}

	generated := false
	if *password == "" {
		*password = strings.ReplaceAll(uuid.NewString(), "-", "")
		generated = true
	} else if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(2)
	}

	hash, err := util.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	// Single quotes keep godotenv from expanding the "$" in the hash.
	fmt.Printf("ADMIN_USERNAME=%s\n", *username)
	fmt.Printf("ADMIN_PASSWORD='%s'\n", hash)
	if generated {
		fmt.Fprintf(os.Stderr, "generated password: %s\n", *password)
		fmt.Fprintln(os.Stderr, "store it now, it is not shown again")
	}
}
