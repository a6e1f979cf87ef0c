// userctl is the administrative provisioning tool: it creates users,
// changes roles, unlocks accounts, and prints password hashes without
// going through the HTTP surface. Changes land in the audit log, and the
// log's hash chain can be verified and corrected from here.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"orggate/internal/audit"
	"orggate/internal/auth"
	"orggate/internal/config"
	"orggate/internal/policy"
)

func main() {
	log.SetFlags(0)
	var (
		dsn       = flag.String("dsn", os.Getenv(config.EnvPGDSN), "PostgreSQL DSN")
		auditPath = flag.String("audit", "orggate-audit.db", "Path to the audit log")
		actor     = flag.String("actor", "ops", "Actor recorded in the audit log")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The user store is only needed for account commands; verify and
	// correct operate on the audit log alone.
	store := func() auth.Store {
		if *dsn == "" {
			log.Fatalf("missing DSN: provide via -dsn or %s", config.EnvPGDSN)
		}
		db, err := sql.Open("pgx", *dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		return auth.NewPGStore(db)
	}

	sink, err := audit.Open(*auditPath)
	if err != nil {
		log.Fatalf("open audit log: %v", err)
	}
	defer sink.Close()

	args := flag.Args()
	switch args[0] {
	case "create":
		err = create(ctx, store(), sink, *actor, args[1:])
	case "set-role":
		err = setRole(ctx, store(), sink, *actor, args[1:])
	case "unlock":
		err = unlock(ctx, store(), sink, *actor, args[1:])
	case "hash":
		err = printHash(args[1:])
	case "list":
		err = list(ctx, store())
	case "verify":
		err = verifyChain(ctx, sink)
	case "correct":
		err = correct(ctx, sink, *actor, args[1:])
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func usage() {
	log.Fatal(`usage: userctl [flags] command
commands:
  create <email> <role> <team> <uid> <password>
  set-role <email> <role>
  unlock <email>
  hash <password>
  list
  verify
  correct <entry-id> <note>`)
}

func create(ctx context.Context, store auth.Store, sink audit.Sink, actor string, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("expected <email> <role> <team> <uid> <password>")
	}
	role, err := policy.ParseRole(args[1])
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(args[4])
	if err != nil {
		return err
	}
	user := &auth.User{
		Email:        args[0],
		Name:         args[3],
		PasswordHash: hash,
		Role:         role,
		Team:         args[2],
		UID:          args[3],
		Status:       auth.StatusActive,
	}
	if err := store.Create(ctx, user); err != nil {
		return err
	}
	if err := sink.Append(ctx, &audit.Entry{
		Actor:   actor,
		Action:  audit.ActionSecurity,
		Target:  "account:" + user.Email,
		Outcome: audit.OutcomeSuccess,
		Detail:  map[string]string{"event": "provision", "role": string(role)},
	}); err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", user.Email, user.ID)
	return nil
}

func setRole(ctx context.Context, store auth.Store, sink audit.Sink, actor string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected <email> <role>")
	}
	role, err := policy.ParseRole(args[1])
	if err != nil {
		return err
	}
	user, err := store.FindByEmail(ctx, args[0])
	if err != nil {
		return err
	}
	if err := store.SetRole(ctx, user.ID, role); err != nil {
		return err
	}
	if err := sink.Append(ctx, &audit.Entry{
		Actor:   actor,
		Action:  audit.ActionSecurity,
		Target:  "account:" + user.Email,
		Outcome: audit.OutcomeSuccess,
		Detail:  map[string]string{"event": "role_change", "from": string(user.Role), "to": string(role)},
	}); err != nil {
		return err
	}
	fmt.Printf("role of %s: %s -> %s\n", user.Email, user.Role, role)
	return nil
}

func unlock(ctx context.Context, store auth.Store, sink audit.Sink, actor string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected <email>")
	}
	verifier := auth.NewVerifier(store, sink)
	if err := verifier.Unlock(ctx, actor, args[0]); err != nil {
		return err
	}
	fmt.Printf("unlocked %s\n", args[0])
	return nil
}

func printHash(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected <password>")
	}
	hash, err := auth.HashPassword(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func verifyChain(ctx context.Context, sink *audit.Log) error {
	bad, err := sink.Verify(ctx)
	if err != nil {
		return err
	}
	if bad != "" {
		return fmt.Errorf("chain broken at entry %s", bad)
	}
	fmt.Println("audit chain intact")
	return nil
}

func correct(ctx context.Context, sink *audit.Log, actor string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected <entry-id> <note>")
	}
	entry := &audit.Entry{
		Actor:   actor,
		Target:  "entry:" + args[0],
		Outcome: audit.OutcomeSuccess,
		Detail:  map[string]string{"note": args[1]},
	}
	if err := sink.AppendCorrection(ctx, args[0], entry); err != nil {
		return err
	}
	fmt.Printf("correction %s recorded for %s\n", entry.ID, args[0])
	return nil
}

func list(ctx context.Context, store auth.Store) error {
	users, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\t%s\t%s\n", u.Email, u.Role, u.Team, u.Status)
	}
	return nil
}
