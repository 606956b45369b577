// Command provision bootstraps an admin account. It is a one-shot, idempotent
// step run by deployment tooling; the server itself never creates accounts.
//
//	provision -username ops -password-file /run/secrets/admin_pw
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lbaudin/androfleet/internal/config"
	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/repositories"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	username := flag.String("username", "", "admin username to create or update")
	password := flag.String("password", "", "admin password (prefer -password-file)")
	passwordFile := flag.String("password-file", "", "file containing the admin password")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "provision: -username is required")
		os.Exit(2)
	}
	pw := *password
	if *passwordFile != "" {
		data, err := os.ReadFile(*passwordFile)
		if err != nil {
			log.Error("cannot read password file", "error", err)
			os.Exit(1)
		}
		pw = strings.TrimSpace(string(data))
	}
	if pw == "" {
		fmt.Fprintln(os.Stderr, "provision: a password is required (-password or -password-file)")
		os.Exit(2)
	}

	cfg := config.Load()
	db, err := repositories.Connect(cfg.DBURL)
	if err != nil {
		log.Error("database setup failed", "error", err)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		log.Error("hashing failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admins := repositories.NewAdminUserRepository(db)
	if err := admins.Upsert(ctx, &models.AdminUser{
		Username:     *username,
		PasswordHash: string(hash),
	}); err != nil {
		log.Error("provisioning failed", "error", err)
		os.Exit(1)
	}
	log.Info("admin account provisioned", "username", *username)
}
