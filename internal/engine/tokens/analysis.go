package tokens

// Analysis is the categorised result of one or more classified batches.
// Tokens are stored by value: merging copies them into the receiver, so a
// record never belongs to two analyses at once.
type Analysis struct {
	Expired      []Token `json:"expired"`
	ExpiringSoon []Token `json:"expiring_soon"`
	Healthy      []Token `json:"healthy"`
	NoExpiration []Token `json:"no_expiration"`
	TotalCount   int     `json:"total_count"`
}

type Summary struct {
	TotalTokens      int `json:"total_tokens"`
	ExpiredCount     int `json:"expired_count"`
	ExpiringCount    int `json:"expiring_count"`
	HealthyCount     int `json:"healthy_count"`
	PermanentCount   int `json:"permanent_count"`
	ProblematicCount int `json:"problematic_count"`
}

func (a *Analysis) add(c Category, t Token) {
	switch c {
	case CategoryExpired:
		a.Expired = append(a.Expired, t)
	case CategoryExpiringSoon:
		a.ExpiringSoon = append(a.ExpiringSoon, t)
	case CategoryHealthy:
		a.Healthy = append(a.Healthy, t)
	case CategoryNoExpiration:
		a.NoExpiration = append(a.NoExpiration, t)
	}
}

// Bucket returns the tokens in category c.
func (a *Analysis) Bucket(c Category) []Token {
	switch c {
	case CategoryExpired:
		return a.Expired
	case CategoryExpiringSoon:
		return a.ExpiringSoon
	case CategoryHealthy:
		return a.Healthy
	case CategoryNoExpiration:
		return a.NoExpiration
	default:
		return nil
	}
}

// Merge appends every bucket of other onto the matching bucket of a and
// adds its total. other is left untouched.
func (a *Analysis) Merge(other *Analysis) {
	if other == nil {
		return
	}
	for _, c := range Categories {
		for _, t := range other.Bucket(c) {
			a.add(c, t.clone())
		}
	}
	a.TotalCount += other.TotalCount
}

// AttachScope stamps the owning project or group's display name and path on
// every token of the analysis. Personal tokens are left as they are.
func (a *Analysis) AttachScope(name, path string) {
	for _, bucket := range [][]Token{a.Expired, a.ExpiringSoon, a.Healthy, a.NoExpiration} {
		for i := range bucket {
			switch o := bucket[i].Owner.(type) {
			case ProjectOwner:
				o.Name, o.Path = name, path
				bucket[i].Owner = o
			case GroupOwner:
				o.Name, o.Path = name, path
				bucket[i].Owner = o
			}
		}
	}
}

func (a *Analysis) Summary() Summary {
	s := Summary{
		TotalTokens:    a.TotalCount,
		ExpiredCount:   len(a.Expired),
		ExpiringCount:  len(a.ExpiringSoon),
		HealthyCount:   len(a.Healthy),
		PermanentCount: len(a.NoExpiration),
	}
	s.ProblematicCount = s.ExpiredCount + s.ExpiringCount
	return s
}

// SummaryFor counts only the tokens of the given scope.
func (a *Analysis) SummaryFor(scope Scope) Summary {
	count := func(bucket []Token) int {
		n := 0
		for _, t := range bucket {
			if t.Scope() == scope {
				n++
			}
		}
		return n
	}

	s := Summary{
		ExpiredCount:   count(a.Expired),
		ExpiringCount:  count(a.ExpiringSoon),
		HealthyCount:   count(a.Healthy),
		PermanentCount: count(a.NoExpiration),
	}
	s.TotalTokens = s.ExpiredCount + s.ExpiringCount + s.HealthyCount + s.PermanentCount
	s.ProblematicCount = s.ExpiredCount + s.ExpiringCount
	return s
}

// GroupByScope partitions tokens by scope, keeping their relative order.
func GroupByScope(bucket []Token) map[Scope][]Token {
	grouped := make(map[Scope][]Token, len(Scopes))
	for _, t := range bucket {
		grouped[t.Scope()] = append(grouped[t.Scope()], t)
	}
	return grouped
}
