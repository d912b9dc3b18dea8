package main

import (
	"context"
	"fmt"
	"os"

	"nexus-go/internal/api"
	"nexus-go/internal/app"
	"nexus-go/internal/config"
	"nexus-go/internal/nexus"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a wired App. The caller must defer
// a.Close(). operation identifies the CLI command being run (e.g. "Add").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// ownerID resolves the acting owner: --owner flag, then NEXUS_OWNER env var.
func ownerID(cmd *cobra.Command) (string, error) {
	owner, _ := cmd.Flags().GetString("owner")
	if owner == "" {
		owner = os.Getenv("NEXUS_OWNER")
	}
	if owner == "" {
		return "", fmt.Errorf("no owner set: pass --owner or set NEXUS_OWNER")
	}
	return owner, nil
}

// readPassphrase prompts on stderr and reads without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Conference contact book with verifiable storage",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Object store: %s\n", cfg.ObjectStore.Type)
		fmt.Printf("Ledger:       %s\n", cfg.Ledger.Type)
		fmt.Printf("Sessions:     %s\n", cfg.Session.Type)
		fmt.Printf("Encryption:   %s\n", orNone(cfg.Encryption.Type))
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		if err := app.Migrate(cfg); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}

		fmt.Println("Database schema is up to date.")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "KeysInit")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Encryptor == nil {
			return fmt.Errorf("encryption is not enabled in the config")
		}
		if a.Encryptor.IsConfigured() {
			return fmt.Errorf("key material already exists")
		}

		pass, err := readPassphrase("Passphrase for private key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.Encryptor.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.Cfg.Server.Addr
		}

		fmt.Printf("Listening on %s\n", addr)
		return api.NewServer(a.Service).Run(addr)
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "AddContact")
		if err != nil {
			return err
		}
		defer a.Close()

		fields := nexus.ContactFields{Name: args[0]}
		fields.Company, _ = cmd.Flags().GetString("company")
		fields.Position, _ = cmd.Flags().GetString("position")
		fields.Email, _ = cmd.Flags().GetString("email")
		fields.Phone, _ = cmd.Flags().GetString("phone")
		fields.Telegram, _ = cmd.Flags().GetString("telegram")
		fields.LinkedIn, _ = cmd.Flags().GetString("linkedin")
		fields.GitHub, _ = cmd.Flags().GetString("github")
		fields.Location, _ = cmd.Flags().GetString("location")
		fields.Goal, _ = cmd.Flags().GetString("goal")
		fields.Notes, _ = cmd.Flags().GetString("notes")
		fields.Tags, _ = cmd.Flags().GetStringSlice("tag")
		fields.Priority, _ = cmd.Flags().GetString("priority")
		fields.Source, _ = cmd.Flags().GetString("source")

		var photo []byte
		if photoPath, _ := cmd.Flags().GetString("photo"); photoPath != "" {
			photo, err = os.ReadFile(photoPath)
			if err != nil {
				return fmt.Errorf("reading photo: %w", err)
			}
		}

		contact, err := a.Service.AddContact(cmd.Context(), owner, fields, photo)
		if err != nil {
			if contact != nil {
				fmt.Printf("Added contact %s (warning: %v)\n", contact.ID, err)
				return nil
			}
			return fmt.Errorf("adding contact: %w", err)
		}

		fmt.Printf("Added contact %s\n", contact.ID)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "GetUserContacts")
		if err != nil {
			return err
		}
		defer a.Close()

		contacts, err := a.Service.GetUserContacts(cmd.Context(), owner)
		if err != nil {
			return err
		}

		printContacts(contacts)
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search contacts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "SearchContacts")
		if err != nil {
			return err
		}
		defer a.Close()

		query := ""
		if len(args) > 0 {
			query = args[0]
		}

		contacts, err := a.Service.SearchContacts(cmd.Context(), owner, query)
		if err != nil {
			return err
		}

		printContacts(contacts)
		return nil
	},
}

func printContacts(contacts []*nexus.Contact) {
	if len(contacts) == 0 {
		fmt.Println("No contacts found.")
		return
	}
	for _, c := range contacts {
		photo := " "
		if c.Photo != nil {
			photo = "P"
		}
		fmt.Printf("%s  %s  [%s]  %-20s  %s\n",
			c.ID, photo, c.Priority, c.Name, c.Company)
	}
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "DeleteContact")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service.DeleteContact(cmd.Context(), owner, args[0]); err != nil {
			return fmt.Errorf("deleting contact: %w", err)
		}

		fmt.Printf("Deleted contact %s\n", args[0])
		return nil
	},
}

// photo command
var photoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Manage contact photos",
}

var photoAddCmd = &cobra.Command{
	Use:   "add ID FILE",
	Short: "Attach a photo to a contact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "AddPhotoToContact")
		if err != nil {
			return err
		}
		defer a.Close()

		photo, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading photo: %w", err)
		}

		contact, err := a.Service.AddPhotoToContact(cmd.Context(), owner, args[0], photo)
		if err != nil {
			if contact != nil {
				fmt.Printf("Photo attached to %s (warning: %v)\n", contact.ID, err)
				return nil
			}
			return fmt.Errorf("attaching photo: %w", err)
		}

		fmt.Printf("Photo attached to %s (%s)\n", contact.ID, contact.Photo.ContentHash[:12])
		return nil
	},
}

var photoGetCmd = &cobra.Command{
	Use:   "get ID OUTFILE",
	Short: "Download a contact's photo",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "RetrievePhoto")
		if err != nil {
			return err
		}
		defer a.Close()

		var dec nexus.DecryptionContext
		if unlock, _ := cmd.Flags().GetBool("unlock"); unlock {
			if a.Encryptor == nil {
				return fmt.Errorf("encryption is not enabled in the config")
			}
			pass, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			dec, err = a.Encryptor.Unlock(pass)
			if err != nil {
				return fmt.Errorf("unlocking private key: %w", err)
			}
		}

		data, err := a.Service.RetrievePhoto(cmd.Context(), owner, args[0], dec)
		if err != nil {
			return fmt.Errorf("retrieving photo: %w", err)
		}

		if err := os.WriteFile(args[1], data, 0644); err != nil {
			return fmt.Errorf("writing photo: %w", err)
		}

		fmt.Printf("Wrote %d bytes to %s\n", len(data), args[1])
		return nil
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify KIND ID",
	Short: "Verify a record against its anchored hash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "VerifyDataIntegrity")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service.VerifyDataIntegrity(cmd.Context(), owner, args[0], args[1])
		if err != nil {
			if res != nil {
				fmt.Printf("MISMATCH: stored %s, current %s\n", res.StoredDigest, res.CurrentDigest)
			}
			return fmt.Errorf("verification failed: %w", err)
		}

		fmt.Printf("OK: %s %s matches digest %s (anchored %s)\n",
			res.Kind, res.OriginalID, res.StoredDigest[:12],
			res.AnchoredAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend health",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetSystemStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.Service.GetSystemStatus(cmd.Context())
		fmt.Printf("Database:     %s\n", okOrDown(st.Database))
		fmt.Printf("Object store: %s\n", okOrDown(st.ObjectStore))
		fmt.Printf("Ledger:       %s\n", okOrDown(st.Ledger))
		fmt.Printf("Overall:      %s\n", st.Overall)
		return nil
	},
}

func okOrDown(up bool) string {
	if up {
		return "ok"
	}
	return "down"
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show contact book statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "GetStats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Service.GetStats(cmd.Context(), owner)
		if err != nil {
			return err
		}

		fmt.Printf("Contacts:       %d\n", stats.Total)
		fmt.Printf("  high:         %d\n", stats.PerPriority[nexus.PriorityHigh])
		fmt.Printf("  medium:       %d\n", stats.PerPriority[nexus.PriorityMedium])
		fmt.Printf("  low:          %d\n", stats.PerPriority[nexus.PriorityLow])
		fmt.Printf("With email:    %d\n", stats.WithEmail)
		fmt.Printf("With linkedin: %d\n", stats.WithLinkedIn)
		fmt.Printf("With github:   %d\n", stats.WithGitHub)
		fmt.Printf("Last 7 days:   %d\n", stats.CreatedLast7d)
		fmt.Printf("Last 30 days:  %d\n", stats.CreatedLast30d)
		return nil
	},
}

// builder command
var builderCmd = &cobra.Command{
	Use:   "builder",
	Short: "Manage the builder application",
}

var builderApplyCmd = &cobra.Command{
	Use:   "apply NAME",
	Short: "Submit a builder application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "AddBaseBuilder")
		if err != nil {
			return err
		}
		defer a.Close()

		fields := nexus.BuilderFields{Name: args[0]}
		fields.Email, _ = cmd.Flags().GetString("email")
		fields.Telegram, _ = cmd.Flags().GetString("telegram")
		fields.Project, _ = cmd.Flags().GetString("project")
		fields.Role, _ = cmd.Flags().GetString("role")
		fields.Experience, _ = cmd.Flags().GetString("experience")
		fields.Motivation, _ = cmd.Flags().GetString("motivation")

		application, err := a.Service.AddBaseBuilder(cmd.Context(), owner, fields)
		if err != nil {
			if application != nil {
				fmt.Printf("Application %s submitted (warning: %v)\n", application.ID, err)
				return nil
			}
			return fmt.Errorf("submitting application: %w", err)
		}

		fmt.Printf("Application %s submitted\n", application.ID)
		return nil
	},
}

var builderShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your builder application",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := ownerID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "GetBaseBuilderByOwner")
		if err != nil {
			return err
		}
		defer a.Close()

		application, err := a.Service.GetBaseBuilderByOwner(cmd.Context(), owner)
		if err != nil {
			return err
		}

		fmt.Printf("ID:         %s\n", application.ID)
		fmt.Printf("Name:       %s\n", application.Name)
		fmt.Printf("Project:    %s\n", application.Project)
		fmt.Printf("Role:       %s\n", application.Role)
		fmt.Printf("Submitted:  %s\n", application.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("owner", "", "Acting owner ID (default: NEXUS_OWNER env var)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// photo subcommands
	photoCmd.AddCommand(photoAddCmd)
	photoCmd.AddCommand(photoGetCmd)
	photoGetCmd.Flags().Bool("unlock", false, "Unlock the private key to decrypt the photo")

	// builder subcommands
	builderCmd.AddCommand(builderApplyCmd)
	builderCmd.AddCommand(builderShowCmd)
	builderApplyCmd.Flags().String("email", "", "Contact email")
	builderApplyCmd.Flags().String("telegram", "", "Telegram handle")
	builderApplyCmd.Flags().String("project", "", "Project name")
	builderApplyCmd.Flags().String("role", "", "Role in the project")
	builderApplyCmd.Flags().String("experience", "", "Relevant experience")
	builderApplyCmd.Flags().String("motivation", "", "Why you are applying")

	// add flags
	addCmd.Flags().String("company", "", "Company")
	addCmd.Flags().String("position", "", "Position")
	addCmd.Flags().String("email", "", "Email")
	addCmd.Flags().String("phone", "", "Phone")
	addCmd.Flags().String("telegram", "", "Telegram handle")
	addCmd.Flags().String("linkedin", "", "LinkedIn profile")
	addCmd.Flags().String("github", "", "GitHub profile")
	addCmd.Flags().String("location", "", "Location")
	addCmd.Flags().String("goal", "", "Networking goal")
	addCmd.Flags().String("notes", "", "Free-form notes")
	addCmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	addCmd.Flags().String("priority", "", "Priority: low, medium or high")
	addCmd.Flags().String("source", "", "Where you met")
	addCmd.Flags().String("photo", "", "Path to a photo file")

	// serve flags
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(photoCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(builderCmd)
}
