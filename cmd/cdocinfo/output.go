package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/leifj/cdoc"
	"github.com/leifj/cdoc/basen"
)

type recipientView struct {
	CommonName  string `json:"commonName" yaml:"commonName"`
	Transport   string `json:"transport" yaml:"transport"`
	Algorithm   string `json:"algorithm" yaml:"algorithm"`
	KeyName     string `json:"keyName,omitempty" yaml:"keyName,omitempty"`
	SHA256      string `json:"sha256" yaml:"sha256"`
	Certificate string `json:"certificate,omitempty" yaml:"certificate,omitempty"`
}

func viewRecipient(r cdoc.Recipient, withCert bool) recipientView {
	sum := sha256.Sum256(r.Certificate)
	v := recipientView{
		CommonName: r.CommonName,
		Transport:  string(r.Transport),
		Algorithm:  r.Algorithm,
		KeyName:    r.KeyName,
		SHA256:     hex.EncodeToString(sum[:]),
	}
	if withCert {
		v.Certificate = basen.StdEncoding.EncodeToString(r.Certificate)
	}
	return v
}

type infoView struct {
	File       string          `json:"file" yaml:"file"`
	Format     string          `json:"format,omitempty" yaml:"format,omitempty"`
	DataFiles  []string        `json:"dataFiles,omitempty" yaml:"dataFiles,omitempty"`
	Recipients []recipientView `json:"recipients,omitempty" yaml:"recipients,omitempty"`
}

// render writes views in the selected output format. Text output is one
// tab-aligned block per container.
func render(w io.Writer, format string, views []infoView) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for i, v := range views {
			if i > 0 {
				fmt.Fprintln(tw)
			}
			fmt.Fprintf(tw, "%s\n", v.File)
			if v.Format != "" {
				fmt.Fprintf(tw, "  format\t%s\n", v.Format)
			}
			for _, name := range v.DataFiles {
				fmt.Fprintf(tw, "  file\t%s\n", name)
			}
			for _, r := range v.Recipients {
				fmt.Fprintf(tw, "  recipient\t%s\t%s\t%s\n", r.CommonName, r.Transport, r.SHA256[:16])
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
