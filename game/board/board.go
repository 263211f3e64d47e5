// Package board holds the static Ludo board geometry: the shared 52-cell
// main track, per-color entry points and home-run lanes, the safe cells
// where captures are forbidden, and the canonical color order per player
// count that turn rotation and team partitioning derive from.
package board

// Color identifies a player within a room and their set of four tokens.
type Color string

const (
	Red    Color = "red"
	Green  Color = "green"
	Yellow Color = "yellow"
	Blue   Color = "blue"
	Orange Color = "orange"
	Purple Color = "purple"
)

const (
	// TrackCells is the length of the shared circular main track.
	TrackCells = 52

	// HomeRunCells is the number of cells in a color's private lane.
	HomeRunCells = 6

	// HomeRunMax is the highest reachable lane index before home
	// (H in the movement rules: a token at lane index i needs exactly
	// H-i to go home).
	HomeRunMax = HomeRunCells - 1

	// TokensPerColor is the number of tokens each color owns.
	TokensPerColor = 4

	// RotationThreshold is the minimum cumulative step count a token
	// needs (including the distance to its entry arrow) before it is
	// allowed to turn into its home-run lane.
	RotationThreshold = 50

	// EntryArrowOffset aligns home-entry timing with the coordinate
	// table. The adjusted entry index is (homeStart - EntryArrowOffset)
	// mod 52 and must stay bit-exact for client compatibility.
	EntryArrowOffset = 2
)

// Coord is a (row, col) cell on the 15x15 client-side grid. The server only
// carries coordinates through to patches; no logic depends on them.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// safeIndices is the set of main-track cells where captures are forbidden:
// the four spawn cells and the four star cells.
var safeIndices = map[int]bool{
	0: true, 8: true, 13: true, 21: true,
	26: true, 34: true, 39: true, 47: true,
}

// homeStart maps each color to its spawn cell on the main track.
var homeStart = map[Color]int{
	Red:    0,
	Green:  13,
	Yellow: 26,
	Blue:   39,
	Orange: 47,
	Purple: 21,
}

// colorOrder defines seat ordering per player count. Turn rotation and team
// partition derive exclusively from these tables, never from storage order.
var colorOrder = map[int][]Color{
	2: {Red, Yellow},
	3: {Red, Green, Blue},
	4: {Red, Green, Yellow, Blue},
	5: {Red, Green, Yellow, Blue, Orange},
	6: {Red, Green, Yellow, Blue, Purple, Orange},
}

// trackCoords is the canonical clockwise walk of the main track starting at
// red's spawn cell.
var trackCoords = buildTrackCoords()

func buildTrackCoords() [TrackCells]Coord {
	// The 52-cell loop on a 15x15 grid, three cells wide per arm.
	raw := [][2]int{
		{6, 1}, {6, 2}, {6, 3}, {6, 4}, {6, 5},
		{5, 6}, {4, 6}, {3, 6}, {2, 6}, {1, 6}, {0, 6},
		{0, 7}, {0, 8},
		{1, 8}, {2, 8}, {3, 8}, {4, 8}, {5, 8},
		{6, 9}, {6, 10}, {6, 11}, {6, 12}, {6, 13}, {6, 14},
		{7, 14}, {8, 14},
		{8, 13}, {8, 12}, {8, 11}, {8, 10}, {8, 9},
		{9, 8}, {10, 8}, {11, 8}, {12, 8}, {13, 8}, {14, 8},
		{14, 7}, {14, 6},
		{13, 6}, {12, 6}, {11, 6}, {10, 6}, {9, 6},
		{8, 5}, {8, 4}, {8, 3}, {8, 2}, {8, 1}, {8, 0},
		{7, 0}, {6, 0},
	}
	var out [TrackCells]Coord
	for i, rc := range raw {
		out[i] = Coord{Row: rc[0], Col: rc[1]}
	}
	return out
}

// homeRunCoords maps each color to the six cells of its private lane, in
// walking order toward the center.
var homeRunCoords = map[Color][]Coord{
	Red:    {{7, 1}, {7, 2}, {7, 3}, {7, 4}, {7, 5}, {7, 6}},
	Green:  {{1, 7}, {2, 7}, {3, 7}, {4, 7}, {5, 7}, {6, 7}},
	Yellow: {{7, 13}, {7, 12}, {7, 11}, {7, 10}, {7, 9}, {7, 8}},
	Blue:   {{13, 7}, {12, 7}, {11, 7}, {10, 7}, {9, 7}, {8, 7}},
	Orange: {{5, 5}, {5, 6}, {6, 6}, {6, 7}, {7, 7}, {7, 8}},
	Purple: {{9, 9}, {9, 8}, {8, 9}, {8, 8}, {7, 9}, {7, 8}},
}

// IsSafe reports whether captures are forbidden on the given track cell.
func IsSafe(trackIndex int) bool {
	return safeIndices[trackIndex]
}

// SafeIndices returns the safe cells in ascending order.
func SafeIndices() []int {
	return []int{0, 8, 13, 21, 26, 34, 39, 47}
}

// HomeStart returns the spawn cell for a color, or -1 for an unknown color.
func HomeStart(c Color) int {
	if idx, ok := homeStart[c]; ok {
		return idx
	}
	return -1
}

// EntryIndexAdjusted returns the track cell from which a lap-completing
// token turns into its home-run lane.
func EntryIndexAdjusted(c Color) int {
	return (HomeStart(c) - EntryArrowOffset + TrackCells) % TrackCells
}

// ColorOrder returns the canonical seat color order for a player count, or
// nil if the count is unsupported.
func ColorOrder(players int) []Color {
	order, ok := colorOrder[players]
	if !ok {
		return nil
	}
	out := make([]Color, len(order))
	copy(out, order)
	return out
}

// PartnerColor returns the teammate color for c under the given player
// count: the color at the opposite index of the order table. The second
// return is false when c is not in the table or the count is odd.
func PartnerColor(c Color, players int) (Color, bool) {
	order := colorOrder[players]
	if order == nil || players%2 != 0 {
		return "", false
	}
	for i, oc := range order {
		if oc == c {
			return order[(i+players/2)%players], true
		}
	}
	return "", false
}

// TeamIndex returns the team a seat slot belongs to, or -1 outside team
// mode. Team i holds slots i and i+players/2.
func TeamIndex(slot, players int) int {
	if players%2 != 0 || players < 4 {
		return -1
	}
	return slot % (players / 2)
}

// TrackCoord returns the grid coordinate of a main-track cell.
func TrackCoord(trackIndex int) Coord {
	return trackCoords[((trackIndex%TrackCells)+TrackCells)%TrackCells]
}

// HomeRunCoord returns the grid coordinate of a lane cell for a color.
func HomeRunCoord(c Color, laneIndex int) Coord {
	lane := homeRunCoords[c]
	if laneIndex < 0 || laneIndex >= len(lane) {
		return Coord{}
	}
	return lane[laneIndex]
}

// AllColors lists every color the board knows, in canonical 6-player order.
func AllColors() []Color {
	return ColorOrder(6)
}

// ValidColor reports whether c is a color the board knows.
func ValidColor(c Color) bool {
	_, ok := homeStart[c]
	return ok
}
