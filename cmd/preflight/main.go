// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/netmon/internal/app"
	"github.com/hamed0406/netmon/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()

	f, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		fail(err.Error())
	}
	mon, err := app.Build(f, cfg)
	if err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("%s: %d checks, %d notifiers", cfg.ConfigFile, len(mon.Probes()), len(mon.Notifiers())))
	if len(mon.Probes()) == 0 {
		warn("no checks configured; the daemon will idle.")
	}
	if len(mon.Notifiers()) == 0 {
		warn("no notifiers configured; escalations only show up in the status API.")
	}

	for name, v := range map[string]string{
		"ADMIN_API_KEYS":  os.Getenv("ADMIN_API_KEYS"),
		"PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS"),
	} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("no API keys set; the status API is open to anyone who can reach " + cfg.Addr)
	} else if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; POST /api/cycles will be refused.")
	}
	ok("ADDR=" + cfg.Addr)

	switch {
	case cfg.DatabaseURL != "":
		ok("DATABASE_URL present; results go to Postgres")
	case cfg.SQLitePath != "":
		ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		warn("DATABASE_URL and SQLITE_PATH empty; results are kept in memory only.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
