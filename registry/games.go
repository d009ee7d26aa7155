package registry

import "strings"

// Game identifiers, as understood by the converter's --game_name flag.
const (
	BrokenLine     = "LudiiBroken Line.lud"
	Connect6       = "LudiiConnect6.lud"
	DaiHasamiShogi = "LudiiDai Hasami Shogi.lud"
	Gomoku         = "LudiiGomoku.lud"
	Pentalath      = "LudiiPentalath.lud"
	Squava         = "LudiiSquava.lud"
	Yavalath       = "LudiiYavalath.lud"
	DiagonalHex    = "LudiiDiagonal Hex.lud"
	Hex            = "LudiiHex.lud"
	HasamiShogi    = "LudiiHasami Shogi.lud"
	KyotoShogi     = "LudiiKyoto Shogi.lud"
	Minishogi      = "LudiiMinishogi.lud"
	Shogi          = "LudiiShogi.lud"
	TobiShogi      = "LudiiTobi Shogi.lud"
	Breakthrough   = "LudiiBreakthrough.lud"
	HeXentafl      = "LudiiHeXentafl.lud"
	Konane         = "LudiiKonane.lud"
)

// DefaultLabelDir is the checkpoint subdirectory of games trained with their
// default options only.
const DefaultLabelDir = "Default"

// Group names used by DefaultGroups.
const (
	GroupLineCompletion   = "line-completion"
	GroupShogiVariants    = "shogi-variants"
	GroupBrokenLine       = "broken-line-to-line-completion"
	GroupDiagonalHexToHex = "diagonal-hex-to-hex"
)

// LineCompletionGames are mutually convertible line-completion games.
var LineCompletionGames = []string{Connect6, DaiHasamiShogi, Gomoku, Pentalath, Squava, Yavalath}

// ShogiVariants are mutually convertible shogi variants.
var ShogiVariants = []string{HasamiShogi, KyotoShogi, Minishogi, Shogi, TobiShogi}

// dirOf returns the checkpoint directory of a game's option set, relative to
// the checkpoint root.
func dirOf(game, sub string) string {
	return game + "/" + sub
}

// defaultOnly is a profile with a single, empty option set.
func defaultOnly(game string) *GameProfile {
	return NewGameProfile(game, OptionSet{CheckpointDir: dirOf(compact(game), DefaultLabelDir)})
}

// compact removes spaces from a game identifier; checkpoint directories are
// named after the identifier without them ("LudiiHasamiShogi.lud").
func compact(game string) string {
	return strings.ReplaceAll(game, " ", "")
}

// boardSizes builds one option set per board size token, labelled by size.
func boardSizes(game string, sizes ...string) *GameProfile {
	sets := make([]OptionSet, len(sizes))
	for i, s := range sizes {
		sets[i] = OptionSet{
			Options:       []string{"Board Size/" + s},
			Label:         s,
			CheckpointDir: dirOf(compact(game), s),
		}
	}
	return NewGameProfile(game, sets...)
}

func brokenLine() *GameProfile {
	dir := compact(BrokenLine)
	return NewGameProfile(BrokenLine,
		OptionSet{Options: []string{"Line Size/3", "Board Size/5x5", "Board/hex"}, Label: "LineSize3Hex", CheckpointDir: dirOf(dir, "LineSize3")},
		OptionSet{Options: []string{"Line Size/4", "Board Size/5x5", "Board/hex"}, Label: "LineSize4Hex", CheckpointDir: dirOf(dir, "LineSize4")},
		OptionSet{Options: []string{"Line Size/5", "Board Size/9x9", "Board/Square"}, Label: "LineSize5Square", CheckpointDir: dirOf(dir, "LineSize5")},
		OptionSet{Options: []string{"Line Size/6", "Board Size/9x9", "Board/Square"}, Label: "LineSize6Square", CheckpointDir: dirOf(dir, "LineSize6")},
	)
}

func hex() *GameProfile {
	dir := compact(Hex)
	return NewGameProfile(Hex,
		OptionSet{Options: []string{"Board Size/7x7"}, Label: "7x7", CheckpointDir: dirOf(dir, "7x7")},
		OptionSet{Options: []string{"Board Size/9x9"}, Label: "9x9", CheckpointDir: dirOf(dir, "9x9")},
		OptionSet{Options: []string{"Board Size/11x11"}, Label: "11x11", CheckpointDir: dirOf(dir, "11x11")},
		OptionSet{Options: []string{"Board Size/11x11", "End Rules/Misere"}, Label: "11x11Misere", CheckpointDir: dirOf(dir, "11x11Misere")},
		OptionSet{Options: []string{"Board Size/13x13"}, Label: "13x13", CheckpointDir: dirOf(dir, "13x13")},
		OptionSet{Options: []string{"Board Size/19x19"}, Label: "19x19", CheckpointDir: dirOf(dir, "19x19")},
	)
}

func pentalath(boards ...string) *GameProfile {
	sets := make([]OptionSet, len(boards))
	for i, b := range boards {
		sets[i] = OptionSet{Options: []string{"Board/" + b}, Label: b, CheckpointDir: dirOf(compact(Pentalath), b)}
	}
	return NewGameProfile(Pentalath, sets...)
}

// Default returns the registry used for cross-game zero-shot conversion.
// Checkpoint directories are relative; see Registry.WithCheckpointRoot.
func Default() *Registry {
	return mustNew(
		brokenLine(),
		defaultOnly(Connect6),
		defaultOnly(DaiHasamiShogi),
		boardSizes(Gomoku, "9x9"),
		pentalath("HexHexBoard"),
		defaultOnly(Squava),
		boardSizes(Yavalath, "5x5"),
		boardSizes(DiagonalHex, "7x7", "9x9", "11x11", "13x13", "19x19"),
		hex(),
		defaultOnly(HasamiShogi),
		defaultOnly(KyotoShogi),
		defaultOnly(Minishogi),
		defaultOnly(Shogi),
		defaultOnly(TobiShogi),
	)
}

// DefaultGroups returns the conversions performed by a zero-shot batch: all
// pairs within the line-completion games and within the shogi variants,
// then Broken Line to every line-completion game and Diagonal Hex to Hex.
func DefaultGroups() []JobGroup {
	return []JobGroup{
		{Name: GroupLineCompletion, Sources: LineCompletionGames},
		{Name: GroupShogiVariants, Sources: ShogiVariants},
		{Name: GroupBrokenLine, Sources: []string{BrokenLine}, Targets: LineCompletionGames, Directional: true},
		{Name: GroupDiagonalHexToHex, Sources: []string{DiagonalHex}, Targets: []string{Hex}, Directional: true},
	}
}

// DefaultResize returns the registry used for same-game board size
// conversion, where every option set of a game is converted to every other.
func DefaultResize() *Registry {
	breakthrough := NewGameProfile(Breakthrough,
		OptionSet{Options: []string{"Board Size/6x6", "Board/Square"}, Label: "Square6", CheckpointDir: dirOf(Breakthrough, "Square6")},
		OptionSet{Options: []string{"Board Size/8x8", "Board/Square"}, Label: "Square8", CheckpointDir: dirOf(Breakthrough, "Square8")},
		OptionSet{Options: []string{"Board Size/10x10", "Board/Square"}, Label: "Square10", CheckpointDir: dirOf(Breakthrough, "Square10")},
		OptionSet{Options: []string{"Board Size/4x4", "Board/Hexagon"}, Label: "Hexagon4", CheckpointDir: dirOf(Breakthrough, "Hexagon4")},
		OptionSet{Options: []string{"Board Size/6x6", "Board/Hexagon"}, Label: "Hexagon6", CheckpointDir: dirOf(Breakthrough, "Hexagon6")},
		OptionSet{Options: []string{"Board Size/8x8", "Board/Hexagon"}, Label: "Hexagon8", CheckpointDir: dirOf(Breakthrough, "Hexagon8")},
	)
	hexentafl := NewGameProfile(HeXentafl,
		OptionSet{Options: []string{"Board Size/4x4"}, Label: "4x4", CheckpointDir: dirOf(HeXentafl, "BoardSize4")},
		OptionSet{Options: []string{"Board Size/5x5"}, Label: "5x5", CheckpointDir: dirOf(HeXentafl, "BoardSize5")},
	)
	konane := NewGameProfile(Konane,
		OptionSet{Options: []string{"Board Size/6x6"}, Label: "6x6", CheckpointDir: dirOf(Konane, "BoardSize6")},
		OptionSet{Options: []string{"Board Size/8x8"}, Label: "8x8", CheckpointDir: dirOf(Konane, "BoardSize8")},
		OptionSet{Options: []string{"Board Size/10x10"}, Label: "10x10", CheckpointDir: dirOf(Konane, "BoardSize10")},
		OptionSet{Options: []string{"Board Size/12x12"}, Label: "12x12", CheckpointDir: dirOf(Konane, "BoardSize12")},
	)

	return mustNew(
		brokenLine(),
		boardSizes(DiagonalHex, "7x7", "9x9", "11x11", "13x13", "19x19"),
		boardSizes(Gomoku, "9x9", "13x13", "15x15", "19x19"),
		hex(),
		pentalath("HexHexBoard", "HalfHexHexBoard"),
		boardSizes(Yavalath, "3x3", "4x4", "5x5", "6x6", "7x7", "8x8"),
		breakthrough,
		hexentafl,
		konane,
	)
}
