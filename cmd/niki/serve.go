package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikibot/niki/assemble"
	"github.com/nikibot/niki/config"
	"github.com/nikibot/niki/engine"
	"github.com/nikibot/niki/generate"
	"github.com/nikibot/niki/index"
	"github.com/nikibot/niki/internal/server"
	"github.com/nikibot/niki/provider"
	"github.com/nikibot/niki/retrieval"
	"github.com/nikibot/niki/router"
	"github.com/nikibot/niki/session"
	"github.com/nikibot/niki/telemetry"
	"github.com/nikibot/niki/websearch"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			prov, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}

			tele := telemetry.New(cfg.Telemetry.Enabled)
			store := index.New(cfg.Index.Path, cfg.Index.DenseWeight, cfg.Index.SparseWeight, prov, telemetry.NewLogger("INDEX"))
			retriever := retrieval.NewService(store, retrieval.Options{
				Hybrid:    cfg.Retrieval.Hybrid,
				UseMMR:    cfg.Retrieval.UseMMR,
				MMRLambda: cfg.Retrieval.MMRLambda,
			}, telemetry.NewLogger("RETRIEVE"))

			var classifier router.Classifier
			switch cfg.Router.Strategy {
			case "keyword":
				classifier = router.KeywordClassifier{}
			case "", "model":
				classifier = router.ModelClassifier{Judge: prov}
			default:
				return fmt.Errorf("unsupported router strategy: %s", cfg.Router.Strategy)
			}
			rt := router.New(classifier, telemetry.NewLogger("ROUTER"))

			sessions, err := session.NewStore(cfg.Session)
			if err != nil {
				return err
			}

			var augmenter engine.Augmenter
			if cfg.WebSearch.Enabled {
				layers := []websearch.Layer{
					websearch.InstantAnswer{},
					websearch.Serper{APIKey: cfg.WebSearch.SerperAPIKey, Sites: cfg.WebSearch.AllowDomains},
					websearch.Scraper{FetchSnippets: true},
				}
				augmenter = websearch.NewAugmenter(layers, cfg.WebSearch.AllowDomains, cfg.WebSearch.DeviceModel, prov, cfg.WebSearch.Timeout, telemetry.NewLogger("WEBSEARCH"))
			}

			assembler := assemble.New(cfg.Assembler.MaxChars)
			generator := generate.New(prov, telemetry.NewLogger("GENERATE"))

			eng := engine.New(rt, retriever, augmenter, assembler, generator, sessions, tele, engine.Options{
				K:              cfg.Retrieval.K,
				ScoreThreshold: cfg.Retrieval.ScoreThreshold,
				WebMaxResults:  cfg.WebSearch.MaxResults,
			}, telemetry.NewLogger("ENGINE"))

			return server.New(eng, sessions, tele).Run(cfg.Server.Address)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")
	return serve
}
