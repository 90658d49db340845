package apiclient

import "fmt"

const (
	FilterToday     = "today"
	FilterThisWeek  = "this-week"
	FilterThisMonth = "this-month"
	FilterAll       = "all"
	FilterCustom    = "custom"
)

// DateFilterPresets — пресеты в порядке показа в интерфейсе.
func DateFilterPresets() []string {
	return []string{FilterToday, FilterThisWeek, FilterThisMonth, FilterAll, FilterCustom}
}

// DateFilter — фильтр списков бронирований и звонков.
// Start/End (YYYY-MM-DD) уходят в API только для custom и только если заданы оба.
type DateFilter struct {
	Preset string
	Start  string
	End    string
}

// AllTime — фильтр для аналитики.
var AllTime = DateFilter{Preset: FilterAll}

// ParseDateFilter проверяет preset; пустой preset означает today.
func ParseDateFilter(preset, start, end string) (DateFilter, error) {
	switch preset {
	case "":
		preset = FilterToday
	case FilterToday, FilterThisWeek, FilterThisMonth, FilterAll, FilterCustom:
	default:
		return DateFilter{}, fmt.Errorf("unknown date filter %q", preset)
	}
	return DateFilter{Preset: preset, Start: start, End: end}, nil
}

func (f DateFilter) Params() map[string]string {
	preset := f.Preset
	if preset == "" {
		preset = FilterToday
	}
	p := map[string]string{"dateFilter": preset}
	if preset == FilterCustom && f.Start != "" && f.End != "" {
		p["startDate"] = f.Start
		p["endDate"] = f.End
	}
	return p
}
