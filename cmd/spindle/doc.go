// Package main hosts the spindle command line crawler.
//
// Architecture overview:
//   - Configuration: Viper populates config.Config from a YAML file (-config)
//     and SPINDLE_* env overrides. config.Validate rejects unusable setups
//     (missing start URLs, relative URLs, empty field rules) before the
//     engine is built.
//   - Spider: siteSpider turns the config into crawl behavior. Every fetched
//     page becomes one item ("url" plus the configured field rules, selector
//     or selector@attr), and links matched by the follow selectors are
//     resolved against the page URL and scheduled while they stay on the
//     allowed domains and the page budget lasts.
//   - Engine: spindle.NewEngine wires the scheduler, fingerprint dedup,
//     politeness delay, and the optional bolt-backed response cache. The main
//     loop drains the crawl iterator and encodes each item as one JSON line.
//   - Fetchers: the default Colly fetcher covers plain HTTP; fetcher.kind:
//     headless switches to the Chromedp fetcher for pages that only render
//     with JavaScript.
//
// Operational notes:
//   - The crawl is sequential. crawl.delay spaces fetches, and cache hits
//     bypass both the network and the delay, so warm re-runs finish fast.
//   - Output goes to stdout by default; output.path redirects it to a file.
//     Logs go to stderr so the two streams can be piped independently.
//   - SIGINT/SIGTERM cancel the crawl context; the current fetch is abandoned
//     and the process exits after reporting the error.
//
// Quick checklist:
//   - Minimal config: spider.start_urls plus at least one spider.fields
//     entry, e.g. title: "h1".
//   - Run: go run ./cmd/spindle -config spindle.yaml
//   - Re-run with crawl.cache.enabled: true and a crawl.cache.dir to iterate
//     on field rules without hammering the site.
package main
