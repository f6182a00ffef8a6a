// ubiformat prepares NAND/NOR flash for UBI.
// Cobra CLI; optional tcell fullscreen map with one cell per eraseblock.
//
// Build:
//
//	go build -o ubiformat .
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ubiformat/mtd"
	"ubiformat/progress"
	"ubiformat/scan"
	"ubiformat/ubi"
	"ubiformat/ubictl"
	"ubiformat/ubiformat"
)

// Exit codes.
const (
	exitOK                = 0
	exitFailure           = 1
	exitConfig            = 2
	exitNeedsConfirmation = 3
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ubiformat.ErrConfig):
		return exitConfig
	case errors.Is(err, ubiformat.ErrNeedsConfirmation):
		return exitNeedsConfirmation
	default:
		return exitFailure
	}
}

// setup loads the settings of cmd and configures glog from them.
func setup(cmd *cobra.Command) (*viper.Viper, error) {
	v, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if v.GetBool("verbose") {
		_ = flag.Set("v", "1")
	}
	return v, nil
}

func main() {
	// glog keeps its settings in the standard flag set, which cobra does
	// not parse.
	_ = flag.CommandLine.Parse(nil)
	_ = flag.Set("logtostderr", "true")

	root := &cobra.Command{
		Use:           "ubiformat",
		Short:         "UBI flash formatter",
		Long:          "Format MTD devices and NAND images for UBI, preserving erase counters, and flash UBI images",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().String("config", "", "YAML file with default flag values")
	root.PersistentFlags().BoolP("verbose", "v", false, "be verbose")

	root.AddCommand(newFormatCmd(), newScanCmd(), newCreateCmd(), newInfoCmd())

	err := root.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, ubiformat.ErrNeedsConfirmation) {
			fmt.Fprintln(os.Stderr, "use --yes to answer all questions with yes")
		}
	}
	glog.Flush()
	os.Exit(exitCode(err))
}

func newFormatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format <mtd-device|image>",
		Short: "Format a flash device for UBI, optionally flashing a UBI image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := setup(cmd)
			if err != nil {
				return err
			}
			cfg, err := formatConfig(v)
			if err != nil {
				return err
			}
			tui := v.GetBool("tui")
			if tui && !cfg.Yes {
				return fmt.Errorf("%w: --tui cannot ask questions, it needs --yes", ubiformat.ErrConfig)
			}

			dev, err := openDevice(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			info := dev.Info()
			glog.Infof("%s", describe(info))

			opts := []ubiformat.Option{ubiformat.WithAttacher(ubictl.New())}
			switch {
			case tui:
				phases := []string{"scanning", "formatting"}
				if cfg.Image != "" {
					phases = []string{"scanning", "flashing", "formatting"}
				}
				scr, err := progress.NewScreen("UBIFORMAT  "+describe(info), info.EBCount, phases...)
				if err != nil {
					return fmt.Errorf("ui init: %w", err)
				}
				// glog output would tear the screen
				_ = flag.Set("logtostderr", "false")
				_ = flag.Set("stderrthreshold", "FATAL")
				defer scr.Close()

				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
				defer signal.Stop(sigChan)
				latch := latchStop(scr.Stopped(), sigChan, func() {
					glog.Warning("stop requested, finishing the run first")
					scr.SetStatus("stop requested, finishing the run first")
				})
				opts = append(opts, ubiformat.WithProgress(scr))

				err = ubiformat.Run(dev, scan.New(), cfg, confirm, opts...)
				stopped := latch.release()
				if err != nil {
					scr.SetStatus(fmt.Sprintf("failed: %v (press q)", err))
				} else {
					scr.SetStatus("done (press q)")
				}
				if !stopped {
					scr.Wait(10 * time.Second)
				}
				return err
			case !v.GetBool("quiet"):
				opts = append(opts, ubiformat.WithProgress(progress.NewText(os.Stdout)))
			}
			return ubiformat.Run(dev, scan.New(), cfg, confirm, opts...)
		},
	}

	f := cmd.Flags()
	f.StringP("image", "f", "", "flash UBI image file, \"-\" for standard input")
	f.StringP("image-size", "S", "", "image size, required when the image comes from standard input")
	f.StringP("ec", "e", "", "use this erase counter for all eraseblocks")
	f.IntP("vid-hdr-offset", "O", 0, "VID header offset (default: right after the EC header)")
	f.StringP("sub-page-size", "s", "", "sub-page size to use instead of the device one")
	f.IntP("ubi-ver", "x", ubi.Version, "UBI version number to put to EC headers")
	f.Uint32P("image-seq", "Q", 0, "32-bit UBI image sequence number (default: random)")
	f.BoolP("novtbl", "n", false, "only erase and write EC headers, no volume table")
	f.BoolP("yes", "y", false, "assume the answer is yes for all questions")
	f.BoolP("quiet", "q", false, "suppress progress output")
	f.Bool("tui", false, "show a fullscreen eraseblock map (needs --yes)")
	return cmd
}

// stopLatch records q, Esc, Ctrl-C and termination signals that arrive
// while a run is in progress. A run that has started always completes.
type stopLatch struct {
	requested atomic.Bool
	quit      chan struct{}
	done      chan struct{}
}

// latchStop watches stopped and sig until release is called. note runs
// once, on the first request.
func latchStop(stopped <-chan struct{}, sig <-chan os.Signal, note func()) *stopLatch {
	l := &stopLatch{quit: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for {
			select {
			case <-stopped:
				stopped = nil
			case <-sig:
			case <-l.quit:
				return
			}
			if !l.requested.Swap(true) && note != nil {
				note()
			}
		}
	}()
	return l
}

// release stops watching and reports whether a stop was requested.
func (l *stopLatch) release() bool {
	close(l.quit)
	<-l.done
	return l.requested.Load()
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <mtd-device|image>",
		Short: "Scan a flash device and report eraseblock states (read-only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := setup(cmd)
			if err != nil {
				return err
			}
			dev, err := openDevice(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()

			s, err := scan.New().Scan(dev)
			if err != nil {
				return err
			}
			printScanReport(os.Stdout, dev.Info(), s, v.GetBool("blocks"))
			return nil
		},
	}
	cmd.Flags().Bool("blocks", false, "list every eraseblock")
	return cmd
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <image>",
		Short: "Create an erased NAND image file with its geometry sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := setup(cmd)
			if err != nil {
				return err
			}
			g, err := imageGeometry(v)
			if err != nil {
				return err
			}
			if err := mtd.CreateImage(args[0], g); err != nil {
				return err
			}
			glog.Infof("created %s and %s%s", args[0], args[0], mtd.SidecarSuffix)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("eb-size", "128KiB", "eraseblock size")
	f.String("min-io-size", "2048", "minimum input/output unit size")
	f.String("sub-page-size", "", "sub-page size (default: min. I/O size)")
	f.String("size", "", "total size, an alternative to --eb-count")
	f.Int("eb-count", 0, "number of eraseblocks")
	f.IntSlice("bad", nil, "eraseblocks that start out bad")
	f.Bool("nor", false, "NOR flash without bad block support")
	return cmd
}

func imageGeometry(v *viper.Viper) (mtd.ImageGeometry, error) {
	var g mtd.ImageGeometry
	ebSize, err := parseSize(v.GetString("eb-size"))
	if err != nil {
		return g, err
	}
	minIO, err := parseSize(v.GetString("min-io-size"))
	if err != nil {
		return g, err
	}
	subpage, err := parseSize(v.GetString("sub-page-size"))
	if err != nil {
		return g, err
	}
	if subpage == 0 {
		subpage = minIO
	}
	size, err := parseSize(v.GetString("size"))
	if err != nil {
		return g, err
	}

	g = mtd.ImageGeometry{
		EBSize:      int(ebSize),
		MinIOSize:   int(minIO),
		SubpageSize: int(subpage),
		EBCount:     v.GetInt("eb-count"),
		BadAllowed:  !v.GetBool("nor"),
		BadBlocks:   v.GetIntSlice("bad"),
	}
	switch {
	case g.EBCount == 0 && size == 0:
		return g, fmt.Errorf("%w: --eb-count or --size is required", ubiformat.ErrConfig)
	case g.EBCount == 0 && ebSize > 0:
		if size%ebSize != 0 {
			return g, fmt.Errorf("%w: size %d is not a multiple of eraseblock size %d", ubiformat.ErrConfig, size, ebSize)
		}
		g.EBCount = int(size / ebSize)
	}
	if !g.BadAllowed && len(g.BadBlocks) > 0 {
		return g, fmt.Errorf("%w: NOR flash has no bad blocks", ubiformat.ErrConfig)
	}
	for _, eb := range g.BadBlocks {
		if eb < 0 || eb >= g.EBCount {
			return g, fmt.Errorf("%w: bad block %d out of range", ubiformat.ErrConfig, eb)
		}
	}
	return g, nil
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <mtd-device|image>",
		Short: "Show flash geometry and the UBI header layout (read-only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := setup(cmd)
			if err != nil {
				return err
			}
			dev, err := openDevice(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()

			info := dev.Info()
			cfg := ubiformat.Config{VIDHdrOffset: v.GetInt("vid-hdr-offset")}
			sub, err := parseSize(v.GetString("sub-page-size"))
			if err != nil {
				return err
			}
			cfg.SubpageSize = int(sub)
			// geometry only; the device is not written
			info.Writable = true
			subpage, err := cfg.Validate(info)
			if err != nil {
				return err
			}
			printInfo(os.Stdout, dev.Info(), ubi.NewInfo(info.EBSize, info.MinIOSize, subpage, cfg.VIDHdrOffset, ubi.Version, 0))
			return nil
		},
	}
	cmd.Flags().IntP("vid-hdr-offset", "O", 0, "VID header offset")
	cmd.Flags().StringP("sub-page-size", "s", "", "sub-page size")
	return cmd
}
