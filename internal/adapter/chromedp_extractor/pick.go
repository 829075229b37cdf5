package chromedp_extractor

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/adarchive-ingest/internal/entity"
)

// minImageArea filters out icons, avatars and tracking pixels. Only images
// declaring at least this many square pixels are considered creative media.
const minImageArea = 10000

// PickMedia scans rendered snapshot HTML for the main media asset. Videos
// win over images; among images the one declaring the largest area is taken.
// Returns false when nothing qualifies.
func PickMedia(htmlContent string) (entity.MediaKind, string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", false
	}

	if src, ok := doc.Find("video").First().Attr("src"); ok && src != "" {
		return entity.MediaVideo, src, true
	}

	var (
		bestSrc string
		maxArea int
	)
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		area := imgArea(s)
		if area >= minImageArea && area > maxArea {
			maxArea = area
			bestSrc = src
		}
	})
	if bestSrc != "" {
		return entity.MediaImage, bestSrc, true
	}
	return "", "", false
}

func imgArea(s *goquery.Selection) int {
	w := attrInt(s, "width")
	h := attrInt(s, "height")
	return w * h
}

func attrInt(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0
	}
	return n
}
