package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ThalesGroup/crypto11"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leifj/cdoc"
	"github.com/leifj/cdoc/cdoctest"
	"github.com/leifj/cdoc/keyselect"
)

func newFilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "files <container>...",
		Short: "List the data files of containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.each(cmd, args, func(v *infoView, f *os.File) error {
				names, err := a.parser.DataFileNames(f)
				v.DataFiles = names
				return err
			})
		},
	}
}

func newRecipientsCmd(a *app) *cobra.Command {
	var withCert bool
	cmd := &cobra.Command{
		Use:   "recipients <container>...",
		Short: "List the recipients of containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.each(cmd, args, func(v *infoView, f *os.File) error {
				recipients, err := a.parser.Recipients(f)
				for _, r := range recipients {
					v.Recipients = append(v.Recipients, viewRecipient(r, withCert))
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&withCert, "certificates", false, "include base64 certificates")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <container>...",
		Short: "Show format, data files and recipients of containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.each(cmd, args, func(v *infoView, f *os.File) error {
				info, err := a.parser.Inspect(f)
				if err != nil {
					return err
				}
				v.Format = info.Format.Version()
				v.DataFiles = info.DataFiles
				for _, r := range info.Recipients {
					v.Recipients = append(v.Recipients, viewRecipient(r, false))
				}
				return nil
			})
		},
	}
}

// each runs fn on every named container and renders the results. A failing
// container is reported and the remaining ones are still processed.
func (a *app) each(cmd *cobra.Command, names []string, fn func(v *infoView, f *os.File) error) error {
	views := make([]infoView, 0, len(names))
	failed := 0
	for _, name := range names {
		f, err := open(name)
		if err != nil {
			failed++
			a.logger.Error("container unreadable", zap.String("file", name), zap.Error(err))
			continue
		}
		v := infoView{File: name}
		err = fn(&v, f)
		if f != os.Stdin {
			f.Close()
		}
		if err != nil {
			failed++
			a.logger.Error("container rejected",
				zap.String("file", name),
				zap.String("code", string(cdoc.CodeOf(err))),
				zap.Error(err))
			continue
		}
		views = append(views, v)
	}
	if err := render(cmd.OutOrStdout(), a.v.GetString("output"), views); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d containers rejected", failed, len(names))
	}
	return nil
}

func newSelectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <container>",
		Short: "Show which of your certificates can open a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			recipients, err := a.parser.Recipients(f)
			if err != nil {
				return err
			}

			var sources []keyselect.Source
			if path := a.v.GetString("pkcs12"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				sources = append(sources, &keyselect.PKCS12Source{
					Data:     data,
					Password: []byte(a.v.GetString("pkcs12-password")),
				})
			}
			if module := a.v.GetString("pkcs11-module"); module != "" {
				sources = append(sources, &keyselect.PKCS11Source{Config: &crypto11.Config{
					Path:       module,
					TokenLabel: a.v.GetString("pkcs11-token"),
					Pin:        a.v.GetString("pkcs11-pin"),
				}})
			}
			if len(sources) == 0 {
				return fmt.Errorf("no credential source: use --pkcs12 or --pkcs11-module")
			}

			matches, err := keyselect.Select(recipients, sources...)
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n",
					m.Index, m.Recipient.CommonName, m.Credential.Source, m.Credential.Label)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("pkcs12", "", "PKCS#12 file holding your certificate and key")
	flags.String("pkcs12-password", "", "PKCS#12 password")
	flags.String("pkcs11-module", "", "PKCS#11 module path")
	flags.String("pkcs11-token", "", "PKCS#11 token label")
	flags.String("pkcs11-pin", "", "PKCS#11 user PIN")
	_ = a.v.BindPFlags(flags)
	return cmd
}

func newGenCmd(a *app) *cobra.Command {
	var (
		version  string
		files    []string
		rsaCNs   []string
		ecCNs    []string
		manifest string
		p12Dir   string
		p12Pass  string
	)
	cmd := &cobra.Command{
		Use:   "gen <output>",
		Short: "Generate a test container for freshly created recipients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := manifestModes[manifest]
			if !ok {
				return fmt.Errorf("unknown manifest mode %q", manifest)
			}
			c := &cdoctest.Container{Version: version, Manifest: mode}
			for _, name := range files {
				c.Files = append(c.Files, cdoctest.Lorem(name))
			}
			for _, cn := range rsaCNs {
				id, err := cdoctest.NewRSAIdentity(cn)
				if err != nil {
					return err
				}
				c.Recipients = append(c.Recipients, id)
			}
			for _, cn := range ecCNs {
				id, err := cdoctest.NewECIdentity(cn)
				if err != nil {
					return err
				}
				c.Recipients = append(c.Recipients, id)
			}

			data, err := c.Build()
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return err
			}
			a.logger.Info("container written", zap.String("file", args[0]), zap.Int("bytes", len(data)))

			if p12Dir != "" {
				for i, id := range c.Recipients {
					p12, err := id.PKCS12(id.Certificate.Subject.CommonName, []byte(p12Pass))
					if err != nil {
						return err
					}
					path := filepath.Join(p12Dir, fmt.Sprintf("recipient%d.p12", i))
					if err := os.WriteFile(path, p12, 0o600); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&version, "container-version", cdoctest.Version11, "container version, 1.0 or 1.1")
	flags.StringArrayVar(&files, "file", []string{"lorem1.txt"}, "data file name, repeat for more files")
	flags.StringArrayVar(&rsaCNs, "rsa", nil, "RSA recipient common name")
	flags.StringArrayVar(&ecCNs, "ec", nil, "EC recipient common name")
	flags.StringVar(&manifest, "manifest", "default", "manifest mode: default, origfile, inline, escaped, base64, none")
	flags.StringVar(&p12Dir, "pkcs12-dir", "", "write each recipient as a PKCS#12 file to this directory")
	flags.StringVar(&p12Pass, "pkcs12-export-password", "test", "password of the written PKCS#12 files")
	return cmd
}

var manifestModes = map[string]cdoctest.ManifestMode{
	"default":  cdoctest.ManifestDefault,
	"origfile": cdoctest.ManifestOrigFile,
	"inline":   cdoctest.ManifestInline,
	"escaped":  cdoctest.ManifestEscaped,
	"base64":   cdoctest.ManifestBase64,
	"none":     cdoctest.ManifestNone,
}
