package mock

import (
	"fmt"
	"hash/fnv"

	"github.com/example/bookhub/internal/domain/reservation"
)

type service struct {
	fromHour, toHour int
	// one in closedEvery slots is fully booked
	closedEvery uint32
	minCap      uint32
	capSpread   uint32
}

// Lunch runs 12:00-14:00 and dinner 19:00-22:00, every 30 minutes.
var services = []service{
	{fromHour: 12, toHour: 14, closedEvery: 3, minCap: 5, capSpread: 20},
	{fromHour: 19, toHour: 22, closedEvery: 4, minCap: 10, capSpread: 25},
}

func hash(parts ...string) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return h.Sum32()
}

// Slots generates the day's slots for a venue. The same inputs always give
// the same slots, so tests and agents see stable availability.
func Slots(externalID, date string) []reservation.TimeSlot {
	var out []reservation.TimeSlot
	for _, s := range services {
		for h := s.fromHour; h <= s.toHour; h++ {
			for _, m := range []int{0, 30} {
				if h == s.toHour && m == 30 {
					continue
				}
				t := fmt.Sprintf("%02d:%02d", h, m)
				slot := reservation.TimeSlot{Time: t}
				if hash(externalID, date, t)%s.closedEvery != 0 {
					slot.Available = true
					slot.Capacity = int(hash(externalID, date, t, "covers")%s.capSpread + s.minCap)
				}
				out = append(out, slot)
			}
		}
	}
	return out
}
