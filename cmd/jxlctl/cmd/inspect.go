package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/spf13/cobra"
)

// FileInfo is the summary printed by the info command
type FileInfo struct {
	TransferSyntax string          `json:"transferSyntax"`
	SyntaxName     string          `json:"syntaxName"`
	Image          dicom.ImageInfo `json:"image"`
	Fragments      int             `json:"fragments"`
	ParseWarning   string          `json:"parseWarning,omitempty"`
}

// describe summarises a parsed file
func describe(h *dicom.Handler) FileInfo {
	fi := FileInfo{
		Image:     h.GetImageInfo(),
		Fragments: h.NumberOfFragments(),
	}
	if ts, err := h.GetTransferSyntax(); err == nil {
		fi.TransferSyntax = ts
		fi.SyntaxName = transfer.Syntax(ts).Name()
	}
	if h.ParseWarning() {
		fi.ParseWarning = h.ParseError().Error()
	}
	return fi
}

func NewInfoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "image info and transfer syntax as JSON",
		Long:  "Prints the transfer syntax, image pixel module and fragment count of a DICOM file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInputFlag(ctx, cmd, args)
			if err != nil {
				return err
			}
			h, err := dicom.NewHandler(data)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(describe(h))
		},
	}
	inputFlags(cmd)
	return cmd
}

func NewDumpCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "print every dataset element",
		Long:  "Parses a DICOM file and prints its elements as text or JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInputFlag(ctx, cmd, args)
			if err != nil {
				return err
			}
			h, err := dicom.NewHandler(data)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}
			switch format, _ := cmd.Flags().GetString("format"); format {
			case "text":
				fmt.Print(h.Dataset())
			default:
				j, err := json.Marshal(h.Dataset())
				if err != nil {
					return err
				}
				os.Stdout.Write(j)
				fmt.Println()
			}
			return nil
		},
	}
	inputFlags(cmd)
	cmd.PersistentFlags().StringP("format", "f", "json", "output format (text|json)")
	return cmd
}
