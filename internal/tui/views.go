package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/tui/styles"
	"github.com/nfnt/resize"
)

// frameCache keeps the last rendered image so redraws for unrelated
// messages do not re-sample the pixels.
type frameCache struct {
	img    *domain.DecodedImage
	width  int
	height int
	out    string
}

// View renders the current state of the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.State == StateHelp {
		return lipgloss.Place(m.Width, m.Height,
			lipgloss.Center, lipgloss.Center,
			styles.ModalStyle.Render(m.Help.View(Keys)+"\n\n"+styles.DimStyle.Render("Press any key to return...")))
	}

	chrome := ChromeHeight
	if m.ShowStats {
		chrome++
	}
	bodyHeight := m.Height - chrome
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	body := m.renderBody(m.Width, bodyHeight)
	if m.State == StatePrompt {
		body = lipgloss.Place(m.Width, bodyHeight, lipgloss.Center, lipgloss.Center, m.Prompt.View())
	}

	lines := []string{m.renderHeader(), body, m.renderInfo()}
	if m.ShowStats {
		lines = append(lines, m.renderStats())
	}
	lines = append(lines, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderHeader shows the position in the view and the active filter
func (m Model) renderHeader() string {
	st := m.Snapshot
	pos := styles.DimStyle.Render("empty")
	if st.Position >= 0 {
		pos = styles.TitleStyle.Render(fmt.Sprintf("%d/%d", st.Position+1, st.Len))
	}
	parts := []string{
		styles.AccentStyle.Render("culler"),
		pos,
		styles.SubtitleStyle.Render(fmt.Sprintf("of %d", st.Total)),
		styles.DimStyle.Render("filter:") + " " + styles.SubtitleStyle.Render(st.Filter),
	}
	if st.MarkedMode {
		parts = append(parts, styles.MarkedModeChip)
	}
	if st.MarkedCount > 0 {
		parts = append(parts, styles.DimStyle.Render(fmt.Sprintf("%d marked", st.MarkedCount)))
	}
	return strings.Join(parts, "  ")
}

// renderBody draws the current image, or a placeholder while it loads
func (m Model) renderBody(width, height int) string {
	if !m.Snapshot.HasItem {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			styles.DimStyle.Render("No images match this filter"))
	}

	frame := styles.FrameBorder
	if m.Snapshot.Marked {
		frame = styles.MarkedFrameBorder
	}
	innerW, innerH := width-2, height-2
	if innerW < 1 || innerH < 1 {
		return ""
	}

	var content string
	item, l := m.Review.CurrentImage()
	switch {
	case item.ID != m.Snapshot.Item.ID:
		// The published snapshot moved on; the next update redraws
		content = m.placeholder(innerW, innerH, "")
	case l.State == cache.StateReady && l.Image != nil:
		content = m.frame.render(l.Image, innerW, innerH)
	case l.State == cache.StateFailed:
		content = lipgloss.Place(innerW, innerH, lipgloss.Center, lipgloss.Center,
			styles.ErrorStyle.Render("Could not load image\n"+styles.Truncate(errString(l.Err), innerW)))
	default:
		spin := styles.SpinnerFrames[m.SpinnerFrame%len(styles.SpinnerFrames)]
		content = m.placeholder(innerW, innerH, spin+" loading")
	}
	return frame.Width(innerW).Height(innerH).Render(content)
}

func (m Model) placeholder(w, h int, text string) string {
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, styles.DimStyle.Render(text))
}

// renderInfo shows the current file, its rating and mark
func (m Model) renderInfo() string {
	st := m.Snapshot
	if !st.HasItem {
		return ""
	}
	parts := []string{
		styles.TitleStyle.Render(styles.Truncate(string(st.Item.ID), m.Width/2)),
		styles.StarStyle.Render(st.Item.Rating.Stars()),
	}
	if st.Marked {
		parts = append(parts, styles.MarkedBadge)
	}
	if _, l := m.Review.CurrentImage(); l.State == cache.StateReady && l.Image != nil {
		parts = append(parts, styles.DimStyle.Render(fmt.Sprintf("%dx%d", l.Image.SourceW, l.Image.SourceH)))
	}
	return strings.Join(parts, "  ")
}

// renderStats shows pool, cache, and prefetch counters
func (m Model) renderStats() string {
	s := m.Review.Stats()
	return styles.DimStyle.Render(fmt.Sprintf(
		"workers %d run %d queued %d · cache %d entries %s/%s hits %d misses %d evicted %d · prefetch gen %d inflight %d cancelled %d obsolete %d",
		s.Pool.Workers, s.Pool.Running, s.Pool.Queued,
		s.Cache.Entries, humanBytes(s.Cache.Bytes), humanBytes(s.Cache.Capacity), s.Cache.Hits, s.Cache.Misses, s.Cache.Evictions,
		s.Prefetch.Generation, s.Prefetch.Inflight, s.Prefetch.Cancelled, s.Prefetch.Obsolete,
	))
}

// renderFooter shows status on the left and the help hint on the right
func (m Model) renderFooter() string {
	var left string
	if m.StatusMsg != "" {
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.DimStyle.Render(m.StatusMsg)
		}
	} else {
		left = m.Help.ShortHelpView(Keys.ShortHelp())
	}

	right := styles.AccentStyle.Render("?") + styles.DimStyle.Render(" help")

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

// render draws img into a w x h cell area with half blocks: each cell
// carries two vertically stacked pixels.
func (c *frameCache) render(img *domain.DecodedImage, w, h int) string {
	if c.img == img && c.width == w && c.height == h {
		return c.out
	}
	scaled := resize.Thumbnail(uint(w), uint(h*2), img.Image, resize.NearestNeighbor)
	c.img, c.width, c.height = img, w, h
	c.out = lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, halfBlocks(scaled))
	return c.out
}

func halfBlocks(img image.Image) string {
	b := img.Bounds()
	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			style := lipgloss.NewStyle().Foreground(styles.Hex(img.At(x, y)))
			if y+1 < b.Max.Y {
				style = style.Background(styles.Hex(img.At(x, y+1)))
			}
			sb.WriteString(style.Render("▀"))
		}
	}
	return sb.String()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
