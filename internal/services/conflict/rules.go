package conflict

import "Agora/internal/domain/models"

// SupermajorityShare is the Buy share that makes a bubble warning possible.
const SupermajorityShare = 0.60

// view indexes one round of opinions by module category.
type view struct {
	opinions []models.ModuleOpinion
	lead     map[models.Category]models.ModuleOpinion
	category map[string]models.Category
}

// newView picks, for each category, its most confident module (module id breaks ties).
func newView(registry models.ModuleRegistry, opinions []models.ModuleOpinion) *view {
	v := &view{
		opinions: opinions,
		lead:     make(map[models.Category]models.ModuleOpinion),
		category: make(map[string]models.Category, len(opinions)),
	}
	for _, o := range opinions {
		c := registry.CategoryOf(o.Module)
		v.category[o.Module] = c
		cur, ok := v.lead[c]
		if !ok || o.Confidence > cur.Confidence || (o.Confidence == cur.Confidence && o.Module < cur.Module) {
			v.lead[c] = o
		}
	}
	return v
}

func (v *view) get(c models.Category) (models.ModuleOpinion, bool) {
	o, ok := v.lead[c]
	return o, ok
}

// others returns opinions from every category except c.
func (v *view) others(c models.Category) []models.ModuleOpinion {
	out := make([]models.ModuleOpinion, 0, len(v.opinions))
	for _, o := range v.opinions {
		if v.category[o.Module] != c {
			out = append(out, o)
		}
	}
	return out
}

// majority is the plurality vote among ops; a tie has no majority.
func majority(ops []models.ModuleOpinion) (models.Vote, bool) {
	var t models.Tally
	for _, o := range ops {
		t.Add(o.Vote)
	}
	var (
		best  models.Vote
		count uint32
		tied  bool
	)
	for _, vote := range models.Votes {
		c := t.Count(vote)
		switch {
		case c > count:
			best, count, tied = vote, c, false
		case c == count && c > 0:
			tied = true
		}
	}
	if count == 0 || tied {
		return 0, false
	}
	return best, true
}

// netVote is the sign of buys minus sells among ops.
func netVote(ops []models.ModuleOpinion) (models.Vote, bool) {
	net := 0
	for _, o := range ops {
		switch o.Vote {
		case models.VoteBuy:
			net++
		case models.VoteSell:
			net--
		}
	}
	switch {
	case net > 0:
		return models.VoteBuy, true
	case net < 0:
		return models.VoteSell, true
	}
	return 0, false
}

func withVote(ops []models.ModuleOpinion, vote models.Vote) []models.ModuleOpinion {
	out := make([]models.ModuleOpinion, 0, len(ops))
	for _, o := range ops {
		if o.Vote == vote {
			out = append(out, o)
		}
	}
	return out
}

// conflictType evaluates the pair rules in order; the first match wins.
func (v *view) conflictType() (models.ConflictType, []models.ModuleOpinion) {
	if f, ok := v.get(models.CategoryFundamental); ok {
		if t, ok := v.get(models.CategoryTechnical); ok && f.Vote.Opposes(t.Vote) {
			return models.ConflictFundamentalVsTechnical, []models.ModuleOpinion{f, t}
		}
	}

	if s, ok := v.get(models.CategorySentiment); ok {
		rest := v.others(models.CategorySentiment)
		if net, ok := netVote(rest); ok && s.Vote.Opposes(net) {
			return models.ConflictSentimentVsNetVote, append([]models.ModuleOpinion{s}, withVote(rest, net)...)
		}
	}

	against := []struct {
		category models.Category
		kind     models.ConflictType
	}{
		{models.CategoryMacro, models.ConflictMacroVsMajority},
		{models.CategoryTiming, models.ConflictTimingVsMajority},
		{models.CategorySector, models.ConflictSectorVsMajority},
	}
	for _, a := range against {
		m, ok := v.get(a.category)
		if !ok {
			continue
		}
		rest := v.others(a.category)
		if maj, ok := majority(rest); ok && m.Vote.Opposes(maj) {
			return a.kind, append([]models.ModuleOpinion{m}, withVote(rest, maj)...)
		}
	}

	return models.ConflictNone, nil
}

// opportunity evaluates the opportunity rules in order; the first match wins.
func (v *view) opportunity(priorRegime *models.Regime) (models.OpportunityType, []models.ModuleOpinion) {
	f, hasF := v.get(models.CategoryFundamental)
	t, hasT := v.get(models.CategoryTechnical)

	if s, ok := v.get(models.CategorySentiment); ok && hasF && s.Vote == models.VoteSell && f.Vote == models.VoteBuy {
		return models.OpportunityPanicSell, []models.ModuleOpinion{s, f}
	}
	if hasT && hasF && t.Vote == models.VoteSell && f.Vote == models.VoteBuy {
		return models.OpportunityBottomFishing, []models.ModuleOpinion{t, f}
	}
	if hasF && f.Vote != models.VoteBuy {
		buys := withVote(v.opinions, models.VoteBuy)
		if float64(len(buys)) >= SupermajorityShare*float64(len(v.opinions)) {
			return models.OpportunityBubbleWarning, append([]models.ModuleOpinion{f}, buys...)
		}
	}
	if hasT && hasF && t.Vote == models.VoteBuy && f.Vote == models.VoteHold {
		return models.OpportunityTopExhaustion, []models.ModuleOpinion{t, f}
	}
	if tm, ok := v.get(models.CategoryTiming); ok && priorRegime != nil && fightsRegime(tm.Vote, *priorRegime) {
		return models.OpportunityTrendReversal, []models.ModuleOpinion{tm}
	}
	return models.OpportunityNone, nil
}

func fightsRegime(vote models.Vote, regime models.Regime) bool {
	switch regime {
	case models.RegimeBull:
		return vote == models.VoteSell
	case models.RegimeBear:
		return vote == models.VoteBuy
	}
	return false
}
