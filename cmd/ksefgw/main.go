package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/api"
	"github.com/alapierre/go-ksef-gateway/ksef/auth"
	"github.com/alapierre/go-ksef-gateway/ksef/cipher"
	"github.com/alapierre/go-ksef-gateway/ksef/keys"
	"github.com/alapierre/go-ksef-gateway/ksef/qr"
	"github.com/alapierre/go-ksef-gateway/ksef/session"
	"github.com/alapierre/go-ksef-gateway/ksef/store"
	"github.com/alapierre/go-ksef-gateway/ksef/util"
)

var (
	envName string
	dataDir string
	keyPath string
	tenant  string
)

func main() {
	if util.DebugEnabled() {
		log.SetLevel(log.DebugLevel)
	}

	root := &cobra.Command{
		Use:          "ksefgw",
		Short:        "KSeF gateway: wysyłka faktur do Krajowego Systemu e-Faktur",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envName, "env", "test", "środowisko KSeF: test, demo lub prod")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", util.GetEnvOrDefault("KSEFGW_DATA", "./data"), "katalog magazynu tokenów")
	root.PersistentFlags().StringVar(&keyPath, "key", util.GetEnvOrDefault("KSEFGW_KEY", "./store.key"), "zaszyfrowany klucz PKCS#8 magazynu")
	root.PersistentFlags().StringVar(&tenant, "tenant", "", "NIP najemcy")

	root.AddCommand(sendCmd(), setTokenCmd(), qrCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <invoice.xml>",
		Short: "Wysyła fakturę XML w sesji interaktywnej i pobiera UPO",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflow, _, err := buildWorkflow()
			if err != nil {
				return err
			}

			document, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			result, err := workflow.SubmitInvoice(context.Background(), tenant, document)
			if err != nil {
				return err
			}

			fmt.Printf("session: %s\ninvoice: %s\nstatus:  %d %s\n",
				result.SessionReference, result.InvoiceReference, result.Status.Code, result.Status.Description)
			if result.KsefNumber != "" {
				fmt.Printf("ksef:    %s\n", result.KsefNumber)
			}
			if result.Upo != nil {
				upoPath := args[0] + ".upo.xml"
				if err := os.WriteFile(upoPath, result.Upo, 0o644); err != nil {
					return err
				}
				fmt.Printf("upo:     %s\n", upoPath)
			}
			return nil
		},
	}
}

func setTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <token>",
		Short: "Zapisuje długoterminowy token najemcy (zaszyfrowany w spoczynku)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileStore, err := openStore()
			if err != nil {
				return err
			}
			return fileStore.SaveLongLivedToken(context.Background(), tenant, args[0])
		},
	}
}

func qrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qr <invoice.xml> <issue-date>",
		Short: "Generuje kod QR weryfikacji faktury (format daty: 2006-01-02)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ksef.ParseEnvironment(envName)
			if err != nil {
				return err
			}
			document, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			issueDate, err := parseDate(args[1])
			if err != nil {
				return err
			}
			png, err := qr.VerificationQR(env, tenant, issueDate, document)
			if err != nil {
				return err
			}
			out := args[0] + ".qr.png"
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ksef.InvalidInputError{Field: "issue-date", Reason: err.Error()}
	}
	return t, nil
}

func buildWorkflow() (*session.Workflow, *store.FileStore, error) {
	env, err := ksef.ParseEnvironment(envName)
	if err != nil {
		return nil, nil, err
	}

	fileStore, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	protocol := api.NewProtocolService(api.New(env))
	engine := cipher.NewEngine(keys.New(protocol))
	flow := auth.NewFlow(protocol, engine)
	credentials := auth.NewCredentialCache(flow, fileStore)

	return session.NewWorkflow(protocol, engine, credentials), fileStore, nil
}

func openStore() (*store.FileStore, error) {
	if tenant == "" {
		return nil, &ksef.InvalidInputError{Field: "tenant", Reason: "--tenant is required"}
	}
	password := util.GetEnvOrFailed("KSEFGW_KEY_PASS")
	return store.Open(dataDir, keyPath, []byte(password))
}
