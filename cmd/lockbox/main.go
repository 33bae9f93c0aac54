package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"golang.org/x/term"

	"github.com/sgurov/lockbox/internal/config"
	"github.com/sgurov/lockbox/internal/crypto"
	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/platform"
	"github.com/sgurov/lockbox/internal/service"
	"github.com/sgurov/lockbox/internal/store"
	"github.com/sgurov/lockbox/internal/utils"
	"github.com/sgurov/lockbox/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	log := logger.NewFileLogger("lockbox")

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	kv, err := openKV(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}

	deriver := crypto.NewKeyDeriver(cfg.Crypto.InteractiveCacheSize, cfg.Crypto.BulkCacheSize)
	cipher := crypto.NewRecordCipher(deriver)
	vault := store.NewVaultStore(kv, cipher, utils.NewRecordIDGenerator(), log)

	secure := platform.DefaultSecureStore()
	prompt := platform.DefaultPrompt(secure)

	app := &app{
		cfg:      cfg,
		logger:   log,
		vault:    service.NewVaultService(vault, cipher, log),
		pipeline: service.NewBatchDecryptPipeline(vault, cipher, cfg.Pipeline.BatchYield, log),
		importer: service.NewImportService(vault, cipher, log),
		wrap:     service.NewSecretWrap(vault, kv, prompt, secure, log),
	}

	if err = app.run(config.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "lockbox:", err)
		os.Exit(1)
	}
}

func openKV(cfg *config.StructuredConfig) (store.KV, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteKV(cfg.Storage.Path)
	default:
		return store.NewFileKV(cfg.Storage.Path)
	}
}

// app holds the wired services behind the command dispatch.
type app struct {
	cfg    *config.StructuredConfig
	logger *logger.Logger

	vault    service.VaultService
	pipeline service.BatchDecryptPipeline
	importer service.ImportService
	wrap     service.SecretWrap
}

func (a *app) run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	ctx := context.Background()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "version":
		printBuildInfo()
		return nil
	case "init":
		return a.cmdInit(ctx)
	case "list":
		return a.cmdList(ctx)
	case "add":
		return a.cmdAdd(ctx, rest)
	case "show":
		return a.cmdShow(ctx, rest)
	case "copy":
		return a.cmdCopy(ctx, rest)
	case "delete":
		return a.cmdDelete(ctx, rest)
	case "clear":
		return a.cmdClear(ctx)
	case "dump":
		return a.cmdDump(ctx)
	case "export":
		return a.cmdExport(ctx, rest)
	case "import":
		return a.cmdImport(ctx, rest)
	case "bio":
		return a.cmdBio(ctx, rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) cmdInit(ctx context.Context) error {
	exists, err := a.vault.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return errors.New("vault already initialized")
	}

	password, err := readNewPassword()
	if err != nil {
		return err
	}

	if err = a.vault.Setup(ctx, password); err != nil {
		return err
	}

	fmt.Println("Vault initialized.")
	return nil
}

func (a *app) cmdList(ctx context.Context) error {
	records, err := a.vault.List(ctx)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("Vault is empty.")
		return nil
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s  %-8s", rec.ID, rec.Type)
		if len(rec.Tags) > 0 {
			line += "  [" + strings.Join(rec.Tags, ", ") + "]"
		}
		if rec.IsFavorite {
			line += "  *"
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	if len(args) != 1 || !models.RecordType(args[0]).Valid() {
		return errors.New("usage: lockbox add password|card")
	}

	rec := models.Record{Type: models.RecordType(args[0])}

	in := bufio.NewReader(os.Stdin)
	switch rec.Type {
	case models.TypePassword:
		data := &models.PasswordData{}
		data.Site = promptLine(in, "Site: ")
		data.Username = promptLine(in, "Username: ")
		data.Password = promptLine(in, "Password: ")
		data.Notes = promptLine(in, "Notes (optional): ")
		rec.Secret.Password = data
	case models.TypeCard:
		data := &models.CardData{}
		data.Cardholder = promptLine(in, "Cardholder: ")
		data.Number = promptLine(in, "Number: ")
		data.ExpMonth = promptLine(in, "Exp month: ")
		data.ExpYear = promptLine(in, "Exp year: ")
		data.Code = promptLine(in, "Code: ")
		rec.Secret.Card = data
	}
	if tags := promptLine(in, "Tags (comma-separated, optional): "); tags != "" {
		rec.Tags = strings.Split(tags, ",")
	}

	password, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	id, err := a.vault.Create(ctx, rec, password)
	if err != nil {
		return err
	}

	fmt.Println("Stored:", id)
	return nil
}

func (a *app) cmdShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lockbox show <id>")
	}

	password, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	rec, err := a.vault.Reveal(ctx, args[0], password)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) cmdCopy(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lockbox copy <id>")
	}

	password, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	rec, err := a.vault.Reveal(ctx, args[0], password)
	if err != nil {
		return err
	}

	var secret string
	switch {
	case rec.Secret.Password != nil:
		secret = rec.Secret.Password.Password
	case rec.Secret.Card != nil:
		secret = rec.Secret.Card.Number
	default:
		return errors.New("record carries no copyable secret")
	}

	if err = clipboard.WriteAll(secret); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}

	if timeout := a.cfg.App.ClipboardTimeout; timeout > 0 {
		fmt.Printf("Copied. Clipboard clears in %s.\n", timeout)
		time.Sleep(timeout)
		if current, err := clipboard.ReadAll(); err == nil && current == secret {
			_ = clipboard.WriteAll("")
		}
	} else {
		fmt.Println("Copied.")
	}
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lockbox delete <id>")
	}

	ok, err := a.vault.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no record with id %s", args[0])
	}

	fmt.Println("Deleted.")
	return nil
}

func (a *app) cmdClear(ctx context.Context) error {
	password, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	ok, err := a.vault.Clear(ctx, password)
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrWrongPassword
	}

	fmt.Println("Vault cleared.")
	return nil
}

// cmdDump streams the whole vault through the batch pipeline, printing
// records as batches arrive.
func (a *app) cmdDump(ctx context.Context) error {
	password, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	a.pipeline.SubscribeBatches(func(batch []models.Record) {
		for _, rec := range batch {
			out, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			fmt.Println(string(out))
		}
	})
	a.pipeline.SubscribeDone(func() { close(done) })

	total, err := a.pipeline.Start(ctx, password)
	if err != nil {
		return err
	}

	<-done
	if dropped := a.pipeline.Dropped(); dropped > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d records could not be decrypted\n", dropped, total)
	}
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lockbox export <file>")
	}

	password, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	records, err := a.importer.Export(ctx, password)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err = os.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	fmt.Printf("Exported %d records to %s.\n", len(records), args[0])
	return nil
}

func (a *app) cmdImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lockbox import <file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	var records []models.Record
	if err = json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}

	password, err := a.unlock(ctx)
	if err != nil {
		return err
	}

	count, err := a.importer.Import(ctx, password, records)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d records.\n", count)
	return nil
}

func (a *app) cmdBio(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lockbox bio enable|disable|status")
	}

	switch args[0] {
	case "enable":
		if !a.wrap.Available() {
			return platform.ErrCapabilityUnavailable
		}
		password, err := readPassword("Master password: ")
		if err != nil {
			return err
		}
		if err = a.wrap.Enable(ctx, password); err != nil {
			return err
		}
		fmt.Println("Biometric unlock enabled.")
		return nil
	case "disable":
		if err := a.wrap.Disable(ctx); err != nil {
			return err
		}
		fmt.Println("Biometric unlock disabled.")
		return nil
	case "status":
		enabled, err := a.wrap.Enabled(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Available: %t, enabled: %t\n", a.wrap.Available(), enabled)
		return nil
	default:
		return fmt.Errorf("unknown bio subcommand %q", args[0])
	}
}

// unlock obtains a verified master password: the biometric wrap when
// enabled, the terminal prompt otherwise.
func (a *app) unlock(ctx context.Context) (string, error) {
	if enabled, err := a.wrap.Enabled(ctx); err == nil && enabled {
		password, err := a.wrap.Unlock(ctx)
		if err == nil {
			return password, nil
		}
		a.logger.Warn().Err(err).Msg("biometric unlock failed, falling back to password")
	}

	password, err := readPassword("Master password: ")
	if err != nil {
		return "", err
	}

	ok, err := a.vault.Unlock(ctx, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", service.ErrWrongPassword
	}
	return password, nil
}

func readNewPassword() (string, error) {
	password, err := readPassword("New master password: ")
	if err != nil {
		return "", err
	}

	confirm, err := readPassword("Repeat master password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	if password == "" {
		return "", errors.New("empty password not allowed")
	}
	return password, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	// piped input (tests, scripts)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptLine(in *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func usage() {
	fmt.Println(`Usage: lockbox [flags] <command>

Commands:
  init              create a new vault
  list              list record metadata (no decryption)
  add password|card store a new record
  show <id>         decrypt and print one record
  copy <id>         copy a record's secret to the clipboard
  delete <id>       remove a record
  clear             remove all records (password required)
  dump              decrypt the whole vault in streamed batches
  export <file>     decrypt all records into a JSON file
  import <file>     encrypt and store records from a JSON file
  bio enable|disable|status
                    manage biometric unlock
  version           print build information`)
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
