package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/view/htmlview"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><script>track()</script><style>td{}</style></head><body>
<table class="el-table"><tr><th>品名</th><th>价格</th></tr><tr><td>螺纹钢</td><td>3800</td></tr></table>
<a href="/login" onclick="evil()">请登录</a></body></html>`

func newTestDumper(t *testing.T) *Dumper {
	d := NewDumper(t.TempDir())
	d.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local) }
	return d
}

func TestDump(t *testing.T) {
	d := newTestDumper(t)
	v, err := htmlview.FromHTML(page)
	require.NoError(t, err)

	dir, err := d.Dump(context.Background(), v, "haoganghui", 3)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(d.Dir, "haoganghui_20250102_030405_p3"), dir)

	source, err := os.ReadFile(filepath.Join(dir, SourceFile))
	require.NoError(t, err)
	require.Contains(t, string(source), "track()")

	md, err := os.ReadFile(filepath.Join(dir, MarkdownFile))
	require.NoError(t, err)
	require.Contains(t, string(md), "螺纹钢")
	require.Contains(t, string(md), "|", "grid rendered as a markdown table")
	require.NotContains(t, string(md), "track()")
	require.NotContains(t, string(md), "evil()")

	_, err = os.Stat(filepath.Join(dir, ScreenshotFile))
	require.True(t, os.IsNotExist(err), "static views have no screenshot")
}

func TestSink_DumpsEmptyPagesOnly(t *testing.T) {
	d := newTestDumper(t)
	v, err := htmlview.FromHTML(page)
	require.NoError(t, err)
	sink := d.Sink(v)
	require.NotNil(t, sink)

	ctx := context.Background()
	sink.Emit(ctx, walker.Event{Kind: walker.EventPageExtracted, Site: "a", Page: 1, Records: 4})
	sink.Emit(ctx, walker.Event{Kind: walker.EventStopped, Site: "a", Page: 2})
	entries, err := os.ReadDir(d.Dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	sink.Emit(ctx, walker.Event{Kind: walker.EventPageExtracted, Site: "a", Page: 2})
	entries, err = os.ReadDir(d.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), "_p2"))
}

func TestSink_Disabled(t *testing.T) {
	v, err := htmlview.FromHTML(page)
	require.NoError(t, err)
	require.Nil(t, NewDumper("").Sink(v))

	var d *Dumper
	require.Nil(t, d.Sink(v))
}

func TestStrip(t *testing.T) {
	src := `<html><body><script>track()</script><div style="display: none">隐藏</div><img src="data:image/png;base64,AAA"><p>螺纹钢</p></body></html>`
	got := Strip(src, noise)
	require.Contains(t, got, "<p>螺纹钢</p>")
	require.NotContains(t, got, "track()")
	require.NotContains(t, got, "隐藏")
	require.NotContains(t, got, "data:image")
}

func TestDomainOf(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.91xinggang.com/steel/list?page=2", "https://www.91xinggang.com"},
		{"p1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := domainOf(tt.in); got != tt.want {
			t.Errorf("domainOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
