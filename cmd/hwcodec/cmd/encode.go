package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwcodec/internal/backend"
	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/device"
	"github.com/jmylchreest/hwcodec/internal/mux"
	"github.com/jmylchreest/hwcodec/pkg/format"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a test stream to MPEG-TS",
	Long:  `Open an encoder on one adapter, encode a fixed surface for the requested
number of frames and write the packets to an MPEG-TS file. The file is read
back afterwards and its video stream summarised.

Examples:
  hwcodec encode --driver nv --codec hevc --frames 300 --file test.ts

  # change the bitrate half way through
  hwcodec encode --driver amf --switch-kbps 1500`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringP("driver", "d", "nv", "driver to encode with (nv, amf, mfx)")
	encodeCmd.Flags().StringP("codec", "c", "h264", "codec (h264, hevc)")
	encodeCmd.Flags().Int64("luid", 0, "adapter LUID (default first adapter of the driver)")
	encodeCmd.Flags().Int("frames", 90, "number of frames to submit")
	encodeCmd.Flags().Int("switch-kbps", 0, "bitrate applied to the live encoder half way through")
	encodeCmd.Flags().StringP("file", "f", "hwcodec-test.ts", "output MPEG-TS file")
	encodeCmd.Flags().StringP("output", "o", "text", "report format (text, json, yaml)")
}

type encodeReport struct {
	Session   string      `json:"session" yaml:"session"`
	Driver    codec.Driver `json:"driver" yaml:"driver"`
	LUID      int64       `json:"luid" yaml:"luid"`
	File      string      `json:"file" yaml:"file"`
	Submitted int         `json:"submitted" yaml:"submitted"`
	Written   int         `json:"written" yaml:"written"`
	Stream    mux.Summary `json:"stream" yaml:"stream"`
}

func runEncode(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}
	driverName, _ := cmd.Flags().GetString("driver")
	codecName, _ := cmd.Flags().GetString("codec")
	luid, _ := cmd.Flags().GetInt64("luid")
	frames, _ := cmd.Flags().GetInt("frames")
	switchKbps, _ := cmd.Flags().GetInt("switch-kbps")
	path, _ := cmd.Flags().GetString("file")

	d, err := codec.ParseDriver(driverName)
	if err != nil {
		return err
	}
	k, err := codec.ParseKind(codecName)
	if err != nil {
		return err
	}
	if frames < 1 {
		return fmt.Errorf("--frames must be at least 1")
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	profile, err := env.profile(k)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	adapters, err := env.provider.Adapters(ctx)
	if err != nil {
		return fmt.Errorf("enumerating adapters: %w", err)
	}
	var adapter *device.Adapter
	for _, a := range device.FilterVendor(adapters, d.Vendor()) {
		if luid == 0 || a.LUID == luid {
			adapter = &a
			break
		}
	}
	if adapter == nil {
		return fmt.Errorf("no %s adapter found: %w", d.Vendor(), codec.ErrUnavailable)
	}

	dev, err := env.provider.Open(ctx, *adapter, device.OptionsFor(d))
	if err != nil {
		return err
	}
	defer func() { _ = env.provider.Close(dev) }()

	tex, err := env.provider.AllocateSurface(dev, profile.Geometry, profile.Format)
	if err != nil {
		return err
	}
	defer func() { _ = env.provider.FreeSurface(dev, tex) }()

	mgr := env.manager()
	defer func() { _ = mgr.Close() }()
	s, err := mgr.CreateEncoder(backend.Params{
		Device:   dev.Handle,
		LUID:     adapter.LUID,
		Vendor:   adapter.VendorID,
		Codec:    k,
		Format:   profile.Format,
		Geometry: profile.Geometry,
		Rate:     profile.Rate,
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.Destroy() }()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := mux.NewWriter(f, k, env.logger)
	interval := s.Params().FrameInterval()
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if switchKbps > 0 && i == frames/2 {
			if err := s.SetBitrate(switchKbps); err != nil {
				env.logger.Warn("bitrate change rejected", slog.Int("kbps", switchKbps), slog.String("error", err.Error()))
			}
		}
		frame, err := s.Encode(tex, int64(i)*interval)
		if codec.IsRetry(err) {
			continue
		}
		if err != nil {
			return err
		}
		werr := w.WritePacket(codec.Packet{Data: frame.Data, PTS: frame.PTS, DTS: frame.DTS, Keyframe: frame.Keyframe})
		_ = frame.Release()
		if werr != nil {
			return werr
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	written, _ := w.Written()
	report := encodeReport{
		Session:   s.ID(),
		Driver:    d,
		LUID:      adapter.LUID,
		File:      path,
		Submitted: frames,
		Written:   written,
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if report.Stream, err = mux.Inspect(ctx, in); err != nil {
		return fmt.Errorf("inspecting %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, output, report); ok {
		return err
	}
	title(out, fmt.Sprintf("Encoded %s with %s on adapter %d", k, d, adapter.LUID))
	_, _ = fmt.Fprintf(out, "session   %s\n", report.Session)
	_, _ = fmt.Fprintf(out, "file      %s\n", report.File)
	_, _ = fmt.Fprintf(out, "frames    %d submitted, %d written\n", report.Submitted, report.Written)
	_, _ = fmt.Fprintf(out, "stream    %s pid 0x%04x, %s packets, %d keyframes, %s, %s\n",
		report.Stream.Codec, report.Stream.PID, format.Number(int64(report.Stream.Packets)), report.Stream.Keyframes,
		format.Bytes(int64(report.Stream.Bytes)), report.Stream.Duration)
	if report.Stream.Keyframes == 0 {
		_, _ = fmt.Fprintln(out, warnStyle.Render("stream has no keyframe"))
	} else {
		_, _ = fmt.Fprintln(out, okStyle.Render("ok"))
	}
	return nil
}
