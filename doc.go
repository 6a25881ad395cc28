// Package spindle is a small, embeddable, strictly sequential web-crawling
// engine: seed requests plus a user extraction callback become a lazily
// produced sequence of items.
//
// Architecture overview:
//   - Fingerprint: DefaultFingerprint derives a canonical identity key per
//     request (normalized URL + method + body digest). Settings.Fingerprint
//     swaps in a replacement, which then drives scheduler dedup and cache
//     keys alike.
//   - Scheduler: an internal FIFO queue with a fingerprint seen-set. Every
//     fingerprint is scheduled at most once per crawl and the request graph
//     is walked breadth-first.
//   - Downloader: applies the per-scheme proxy choice and the inter-request
//     delay (measured from the previous fetch's return), then delegates the
//     transport to a Fetcher. CollyFetcher is the default; package headless
//     substitutes a browser-backed one; tests substitute stubs.
//   - Cache: optional fingerprint-keyed response store consulted before the
//     downloader and populated after a successful fetch. Hits bypass both
//     the network and the delay policy. MemoryCache is the per-crawl
//     default; package boltcache persists entries across runs.
//   - Engine: Engine.Crawl wires the above into a Crawl, a pull-based
//     iterator in the bufio.Scanner mold. Each Next call drains values the
//     current callback already yielded, or performs exactly one
//     pop-resolve-callback cycle; nothing runs ahead of the consumer.
//
// Error model: transport failures are transient, logged, and cost one
// request each. A callback returning an error, or yielding a value that is
// neither item nor request, is a spider defect and aborts the crawl; Err
// reports it after Next returns false.
//
// A minimal spider:
//
//	type quotes struct{}
//
//	func (quotes) StartRequests() []*spindle.Request {
//		return spindle.StartURLs("https://quotes.example.com/")
//	}
//
//	func (quotes) Parse(resp *spindle.Response) ([]spindle.Yield, error) {
//		var out []spindle.Yield
//		resp.Find("div.quote > span.text").Each(func(_ int, s *goquery.Selection) {
//			out = append(out, spindle.Emit(spindle.Item{"text": s.Text()}))
//		})
//		resp.Find("li.next > a").Each(func(_ int, a *goquery.Selection) {
//			if href, ok := a.Attr("href"); ok {
//				if next, err := resp.JoinURL(href); err == nil {
//					out = append(out, spindle.Follow(spindle.NewRequest(next)))
//				}
//			}
//		})
//		return out, nil
//	}
//
//	crawl, err := spindle.Run(ctx, quotes{}, &spindle.Settings{Delay: time.Second})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for crawl.Next() {
//		fmt.Println(crawl.Item())
//	}
//	if err := crawl.Err(); err != nil {
//		log.Fatal(err)
//	}
package spindle
