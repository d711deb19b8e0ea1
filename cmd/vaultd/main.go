// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/stakesafe/vaultd/api"
	"github.com/stakesafe/vaultd/funddb"
	"github.com/stakesafe/vaultd/log"
	"github.com/stakesafe/vaultd/metrics"
	"github.com/stakesafe/vaultd/vault"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "vaultd",
		Usage:   "pooled staking vault accounting daemon",
		Flags: []cli.Flag{
			configFileFlag,
			dataDirFlag,
			memFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiTimeoutFlag,
			enableAPILogsFlag,
			verbosityFlag,
			jsonLogsFlag,
			enableMetricsFlag,
			pprofFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	var db *funddb.FundDB
	if ctx.Bool(memFlag.Name) {
		db = openMemFundDB()
	} else {
		db = openFundDB(makeDataDir(ctx))
	}
	defer func() { logger.Info("closing fund database..."); db.Close() }()

	eng := vault.New(db, db)

	apiCors := ctx.String(apiCorsFlag.Name)
	if cfgPath := ctx.String(configFileFlag.Name); cfgPath != "" {
		cfg, err := loadFileConfig(cfgPath)
		if err != nil {
			return err
		}
		if err := seedVaults(eng, cfg, time.Now().Unix()); err != nil {
			return err
		}
		if apiCors == "" {
			apiCors = cfg.APICors
		}
	}

	handler := api.New(eng, api.Options{
		AllowedOrigins:  apiCors,
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
	})

	apiURL, srvClose := startAPIServer(ctx, handler)
	defer func() { logger.Info("stopping API server..."); srvClose() }()

	fmt.Printf(`Starting %v
    Version    [ %v ]
    Fund DB    [ %v ]
    API portal [ %v ]
`, "vaultd", fullVersion(), db.Path(), apiURL)

	<-handleExitSignal().Done()
	return nil
}
