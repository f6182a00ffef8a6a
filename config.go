package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ubiformat/ubiformat"
)

// loadSettings layers the flags of cmd over UBIFORMAT_* environment
// variables and an optional YAML config file, in that order of precedence.
func loadSettings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("UBIFORMAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %w", ubiformat.ErrConfig, err)
		}
	}
	return v, nil
}

// parseSize accepts plain byte counts as well as "128KiB" or "2MB".
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad size %q: %w", ubiformat.ErrConfig, s, err)
	}
	return int64(n), nil
}

func formatConfig(v *viper.Viper) (ubiformat.Config, error) {
	cfg := ubiformat.Config{
		Image:        v.GetString("image"),
		VIDHdrOffset: v.GetInt("vid-hdr-offset"),
		UBIVersion:   v.GetInt("ubi-ver"),
		ImageSeq:     v.GetUint32("image-seq"),
		NoVtbl:       v.GetBool("novtbl"),
		Yes:          v.GetBool("yes"),
	}

	var err error
	if cfg.ImageSize, err = parseSize(v.GetString("image-size")); err != nil {
		return cfg, err
	}
	subpage, err := parseSize(v.GetString("sub-page-size"))
	if err != nil {
		return cfg, err
	}
	cfg.SubpageSize = int(subpage)

	if ec := strings.TrimSpace(v.GetString("ec")); ec != "" {
		n, err := strconv.ParseUint(ec, 0, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: bad erase counter %q", ubiformat.ErrConfig, ec)
		}
		cfg.OverrideEC, cfg.EC = true, n
	}
	return cfg, nil
}
