// Package journey computes team and user progress along a waypoint route.
package journey

import "github.com/rowquest/rowquest-api/internal/models"

// SumRowingDistance returns the total rowed meters over activities. Non-rowing activities and
// rowing activities without a distance count as zero.
func SumRowingDistance(activities []models.Activity) float64 {
	total := 0.0
	for i := range activities {
		if activities[i].IsRowing() {
			total += activities[i].Distance()
		}
	}
	return total
}

// SumTeamDistance sums rowing distance over activities logged by the given members.
func SumTeamDistance(activities []models.Activity, memberIDs []uint) float64 {
	members := make(map[uint]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}

	total := 0.0
	for i := range activities {
		if _, ok := members[activities[i].UserID]; !ok {
			continue
		}
		if activities[i].IsRowing() {
			total += activities[i].Distance()
		}
	}
	return total
}
