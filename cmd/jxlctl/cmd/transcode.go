package cmd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/jpfielding/dicomjxl.go/pkg/config"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/transcode"
	"github.com/spf13/cobra"
)

func NewTranscodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcode",
		Short: "convert pixel data to or from JPEG-XL",
		Long: "Transcodes a DICOM file to the first workable syntax in --syntax. " +
			"Native and RLE sources are encoded with the configured JPEG-XL mode, JPEG-XL sources are decoded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(ctx, cmd)
			if err != nil {
				return err
			}
			data, err := readInputFlag(ctx, cmd, args)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			syntaxes, _ := cmd.Flags().GetStringSlice("syntax")
			newUID, _ := cmd.Flags().GetBool("allow-new-uid")
			if out == "" {
				return fmt.Errorf("output path is required. Use --out flag")
			}

			result, err := transcode.New(cfg).Transcode(ctx, data, syntaxes, newUID)
			if errors.Is(err, transcode.ErrNotHandled) {
				return fmt.Errorf("no conversion to %v: %w", syntaxes, err)
			}
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "transcoded",
				slog.String("out", out),
				slog.Int("in_bytes", len(data)),
				slog.Int("out_bytes", len(result)))
			return os.WriteFile(out, result, 0644)
		},
	}
	inputFlags(cmd)
	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "", "output DICOM path")
	pf.StringSlice("syntax", []string{string(transfer.JPEGXLLossless)}, "allowed output transfer syntax UIDs, in order")
	pf.Bool("allow-new-uid", false, "allow a new SOP Instance UID for lossy output")
	return cmd
}

func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "decode one JPEG-XL frame",
		Long:  "Decodes a frame of a JPEG-XL encoded DICOM file and writes it as raw samples or PNG.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInputFlag(ctx, cmd, args)
			if err != nil {
				return err
			}
			frame, _ := cmd.Flags().GetInt("frame")
			out, _ := cmd.Flags().GetString("out")
			format, _ := cmd.Flags().GetString("format")
			if out == "" {
				out = fmt.Sprintf("frame_%d.%s", frame, format)
			}

			img, err := transcode.New(config.Default()).DecodeFrame(ctx, data, frame)
			if err != nil {
				return err
			}
			fmt.Printf("Decoding frame %d (%dx%d %s) to %s\n", frame, img.Width, img.Height, img.Format, out)
			switch format {
			case "raw":
				return os.WriteFile(out, img.Pixels, 0644)
			case "png":
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				return png.Encode(f, toImage(img))
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	inputFlags(cmd)
	pf := cmd.PersistentFlags()
	pf.Int("frame", 0, "index of frame to decode")
	pf.StringP("out", "o", "", "output path, frame_N.<format> when empty")
	pf.StringP("format", "f", "png", "output format (png|raw)")
	return cmd
}

// toImage wraps decoded samples for image encoders. Signed samples are
// offset by 0x8000 so the PNG shows the full range.
func toImage(img *transcode.Image) image.Image {
	w, h := int(img.Width), int(img.Height)
	rect := image.Rect(0, 0, w, h)
	switch img.Format {
	case transcode.Gray8:
		return &image.Gray{Pix: img.Pixels, Stride: w, Rect: rect}
	case transcode.Gray16, transcode.SignedGray16:
		out := image.NewGray16(rect)
		for i := 0; i < w*h; i++ {
			v := binary.LittleEndian.Uint16(img.Pixels[i*2:])
			if img.Format == transcode.SignedGray16 {
				v ^= 0x8000
			}
			binary.BigEndian.PutUint16(out.Pix[i*2:], v)
		}
		return out
	case transcode.RGB24:
		out := image.NewNRGBA(rect)
		for i := 0; i < w*h; i++ {
			copy(out.Pix[i*4:], img.Pixels[i*3:i*3+3])
			out.Pix[i*4+3] = 0xFF
		}
		return out
	default:
		out := image.NewNRGBA64(rect)
		for i := 0; i < w*h; i++ {
			for c := 0; c < 3; c++ {
				v := binary.LittleEndian.Uint16(img.Pixels[i*6+c*2:])
				binary.BigEndian.PutUint16(out.Pix[i*8+c*2:], v)
			}
			out.Pix[i*8+6], out.Pix[i*8+7] = 0xFF, 0xFF
		}
		return out
	}
}
