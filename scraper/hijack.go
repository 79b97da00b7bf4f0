package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerDomains are analytics and chat-widget hosts common on Chinese
// trading portals. None of them serve listing data.
var trackerDomains = map[string]struct{}{
	"hm.baidu.com":          {},
	"hmcdn.baidu.com":       {},
	"cnzz.com":              {},
	"umeng.com":             {},
	"51.la":                 {},
	"growingio.com":         {},
	"sensorsdata.cn":        {},
	"zhugeio.com":           {},
	"53kf.com":              {},
	"meiqia.com":            {},
	"qiyukf.com":            {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"doubleclick.net":       {},
	"googlesyndication.com": {},
}

// isTracker reports whether host or any parent domain is a known tracker.
func isTracker(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// setupHijack blocks the named resource types and, optionally, tracker
// hosts. Scripts and XHR are never blocked: the listing grid is built by
// them. It returns nil when there is nothing to block.
func setupHijack(page *rod.Page, blockedTypes []string, blockTrackers bool) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && !blockTrackers {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := blocked[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if blockTrackers {
			if u, err := url.Parse(h.Request.URL().String()); err == nil && isTracker(u.Hostname()) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
