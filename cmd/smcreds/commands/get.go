package commands

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/systmms/smcreds/internal/config"
	smerrors "github.com/systmms/smcreds/internal/errors"
	"github.com/systmms/smcreds/internal/pipeline"
	"github.com/systmms/smcreds/internal/secretstores"
	"github.com/systmms/smcreds/internal/server"
	"github.com/systmms/smcreds/pkg/credential"
)

func NewGetCommand(cfg *config.Config, stores *secretstores.Registry) *cobra.Command {
	var (
		reveal     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one credential",
		Long: `Show the metadata of a single credential.

With --reveal the secret itself is fetched and printed to stdout, making it
suitable for scripting. Nothing is written to disk.

Examples:
  # Show metadata
  smcreds get deploy-key

  # Use in scripts
  export TOKEN=$(smcreds get api-token --reveal)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			p, err := loadPipeline(ctx, cfg, stores)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			c, err := pipeline.NewProvider(p).Lookup(ctx, id)
			if errors.Is(err, pipeline.ErrCredentialNotFound) {
				return smerrors.UserError{
					Message:    fmt.Sprintf("Credential '%s' not found", id),
					Suggestion: "Run 'smcreds list' to see the available credentials",
					Err:        err,
				}
			}
			if err != nil {
				return explain(cfg.Definition, err)
			}

			out := cmd.OutOrStdout()
			if reveal {
				return revealSecret(ctx, out, c)
			}

			view := server.NewCredentialView(c)
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(view)
			}

			_, _ = fmt.Fprintf(out, "id:          %s\n", view.ID)
			_, _ = fmt.Fprintf(out, "type:        %s\n", view.Type)
			_, _ = fmt.Fprintf(out, "store id:    %s\n", view.StoreID)
			_, _ = fmt.Fprintf(out, "description: %s\n", view.Description)
			keys := make([]string, 0, len(view.Tags))
			for k := range view.Tags {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(out, "tag:         %s=%s\n", k, view.Tags[k])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Fetch and print the secret")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output metadata in JSON format")
	return cmd
}

// revealSecret writes the secret of c in the most useful plain form for its
// type.
func revealSecret(ctx context.Context, w io.Writer, c credential.Credential) error {
	switch c := c.(type) {
	case *credential.String:
		s, err := c.Secret(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, s)
		return err

	case *credential.UsernamePassword:
		pw, err := c.Password(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "username: %s\npassword: %s\n", c.Username(), pw)
		return err

	case *credential.JSONUsernamePassword:
		user, err := c.Username(ctx)
		if err != nil {
			return err
		}
		pw, err := c.Password(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "username: %s\npassword: %s\n", user, pw)
		return err

	case *credential.File:
		content, err := c.Content(ctx)
		if err != nil {
			return err
		}
		_, err = w.Write(content)
		return err

	case *credential.Certificate:
		ks, err := c.KeyStore(ctx)
		if err != nil {
			return err
		}
		key, err := x509.MarshalPKCS8PrivateKey(ks.PrivateKey)
		if err != nil {
			return &credential.UnavailableError{ID: c.ID(), Reason: "private key cannot be encoded", Err: err}
		}
		blocks := []*pem.Block{{Type: "PRIVATE KEY", Bytes: key}, {Type: "CERTIFICATE", Bytes: ks.Certificate.Raw}}
		for _, ca := range ks.CACerts {
			blocks = append(blocks, &pem.Block{Type: "CERTIFICATE", Bytes: ca.Raw})
		}
		for _, b := range blocks {
			if err := pem.Encode(w, b); err != nil {
				return err
			}
		}
		return nil

	case *credential.AWSCredentials:
		secret, err := c.SecretAccessKey(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "AWS_ACCESS_KEY_ID=%s\nAWS_SECRET_ACCESS_KEY=%s\n", c.AccessKeyID(), secret)
		if role := c.Role(); role != nil {
			_, _ = fmt.Fprintf(w, "# assume role %s", role.RoleARN)
			if role.SessionDuration > 0 {
				_, _ = fmt.Fprintf(w, " for %s", role.SessionDuration)
			}
			_, _ = fmt.Fprintln(w)
		}
		return nil

	case *credential.SSHUserPrivateKey:
		key, err := c.PrivateKey(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, key)
		return err
	}

	return smerrors.UserError{
		Message:    fmt.Sprintf("Cannot reveal credentials of type %s", c.Type()),
		Suggestion: "Use the credential through its integration instead",
	}
}
