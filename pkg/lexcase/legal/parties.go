package legal

import (
	"regexp"
	"strings"
)

// Relationship labels.
const (
	RelatedParty = "關聯方"
	JointParty   = "共同當事人"
	AgentParty   = "代理關係"
)

// Role labels, longest first so 被上訴人 is not read as 上訴人.
var roleLabels = []string{"訴訟代理人", "被上訴人", "上訴人", "聲請人", "相對人", "代理人", "原告", "被告"}

var partyRe = regexp.MustCompile(
	`(` + strings.Join(roleLabels, "|") + `)[：:\s]*([^，。；：:\s、()（）「」\d]{1,20})`)

// nameStops end a captured name: another role label or a word that
// follows a name in running text.
var nameStops = append(append([]string(nil), roleLabels...),
	"主張", "請求", "要求", "抗辯", "表示", "陳稱", "陳述", "到庭", "律師", "共同", "於", "與", "及", "等", "向", "對", "應", "則", "即", "並", "為")

// namePrefixStops reject a capture that is running text rather than a name.
var namePrefixStops = []string{"之", "的", "所", "已", "亦", "均", "係", "就", "在"}

type partyMention struct {
	name, role string
	start, end int
}

// findPartyMentions returns role-labelled names in order of appearance.
func findPartyMentions(text string) []partyMention {
	var out []partyMention
	for pos := 0; pos < len(text); {
		loc := partyRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		role := text[pos+loc[2] : pos+loc[3]]
		nameStart := pos + loc[4]
		name := truncateName(text[nameStart : pos+loc[5]])
		next := pos + loc[1]
		if name != "" {
			out = append(out, partyMention{name: name, role: role, start: pos + loc[0], end: nameStart + len(name)})
			next = nameStart + len(name)
		} else {
			next = pos + loc[3]
		}
		pos = next
	}
	return out
}

func truncateName(name string) string {
	for _, w := range namePrefixStops {
		if strings.HasPrefix(name, w) {
			return ""
		}
	}
	cut := len(name)
	for _, w := range nameStops {
		if i := strings.Index(name, w); i >= 0 && i < cut {
			cut = i
		}
	}
	return name[:cut]
}

// extractParties collects parties by role, first role wins, and assigns
// a symmetric relationship to every pair named together in a sentence.
func extractParties(text string) []Party {
	var parties []Party
	index := make(map[string]int)
	for _, m := range findPartyMentions(text) {
		if _, ok := index[m.name]; ok {
			continue
		}
		index[m.name] = len(parties)
		parties = append(parties, Party{Name: m.name, Role: m.role, Relationships: make(map[string]string)})
	}

	sentences := strings.Split(text, "。")
	for i := range parties {
		for j := i + 1; j < len(parties); j++ {
			a, b := parties[i].Name, parties[j].Name
			for _, s := range sentences {
				if !strings.Contains(s, a) || !strings.Contains(s, b) {
					continue
				}
				rel := RelatedParty
				switch {
				case strings.Contains(s, "共同"):
					rel = JointParty
				case strings.Contains(s, "代理人"):
					rel = AgentParty
				}
				parties[i].Relationships[b] = rel
				parties[j].Relationships[a] = rel
			}
		}
	}
	return parties
}
