package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"watch-market/models"
	"watch-market/utils"
)

const topReferenceCount = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.MarketOverview {
	report := &models.MarketOverview{
		ListingsByCountry: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	refCounts := make(map[string]int)
	var priced []*models.Listing

	for _, l := range listings {
		if l.Reference != nil {
			refCounts[*l.Reference]++
		}
		if l.Price != nil && *l.Price > 0 {
			priced = append(priced, l)
		}
		if l.Country != nil {
			report.ListingsByCountry[*l.Country]++
		}
	}
	report.References = len(refCounts)

	if len(priced) > 0 {
		report.MinPrice = *priced[0].Price
		report.MaxPrice = *priced[0].Price
		report.MostExpensive = priced[0]
		var total float64
		for _, l := range priced {
			total += *l.Price
			if *l.Price < report.MinPrice {
				report.MinPrice = *l.Price
			}
			if *l.Price > report.MaxPrice {
				report.MaxPrice = *l.Price
				report.MostExpensive = l
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
	}

	for ref, n := range refCounts {
		report.TopReferences = append(report.TopReferences, models.ReferenceCount{Reference: ref, Count: n})
	}
	sortReferenceCounts(report.TopReferences)
	if len(report.TopReferences) > topReferenceCount {
		report.TopReferences = report.TopReferences[:topReferenceCount]
	}

	return report
}

// sortReferenceCounts orders by count descending, then reference ascending.
func sortReferenceCounts(rc []models.ReferenceCount) {
	sort.Slice(rc, func(i, j int) bool {
		if rc[i].Count != rc[j].Count {
			return rc[i].Count > rc[j].Count
		}
		return rc[i].Reference < rc[j].Reference
	})
}

func (s *InsightService) Print(w io.Writer, r *models.MarketOverview) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  ⌚ WATCH MARKET OVERVIEW\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Processed listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Reference numbers  : \033[1m%d\033[0m\n", r.References)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%s\033[0m\n", money(r.AveragePrice))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%s\033[0m\n", money(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%s\033[0m\n", money(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if l := r.MostExpensive; l != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		model, _ := l.Categorical(models.ColModel)
		fmt.Fprintf(w, "  %s %s\n", l.RefString(), runewidth.Truncate(model, 40, "..."))
		fmt.Fprintf(w, "  Price : \033[1;31m$%s\033[0m\n", money(*l.Price))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Most Listed References\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for i, rc := range r.TopReferences {
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %s %d listings\n", i+1, runewidth.FillRight(rc.Reference, 20), rc.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Country\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByCountry) == 0 {
		fmt.Fprintf(w, "  No country data\n")
	} else {
		counts := make([]models.ReferenceCount, 0, len(r.ListingsByCountry))
		most := 0
		for c, n := range r.ListingsByCountry {
			counts = append(counts, models.ReferenceCount{Reference: c, Count: n})
			if n > most {
				most = n
			}
		}
		sortReferenceCounts(counts)
		for _, cc := range counts {
			bar := strings.Repeat("█", scaleBar(cc.Count, most, 30))
			fmt.Fprintf(w, "  %s %s (%d)\n", runewidth.FillRight(runewidth.Truncate(cc.Reference, 28, "..."), 30), bar, cc.Count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// scaleBar maps n of most onto at most width cells, at least one for n > 0.
func scaleBar(n, most, width int) int {
	if n <= 0 || most <= 0 {
		return 0
	}
	cells := n * width / most
	if cells == 0 {
		cells = 1
	}
	return cells
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
