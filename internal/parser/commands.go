package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/IronFox/AVS-sub001/internal/vehicle"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type anchorArg struct {
	Name     string          `json:"name" validate:"required"`
	Position core.Vec3       `json:"position"`
	Rotation core.Quaternion `json:"rotation"`
}

func (a *anchorArg) anchor() *core.Anchor {
	if a == nil {
		return nil
	}
	return &core.Anchor{Name: a.Name, Position: a.Position, Rotation: a.Rotation}
}

type hatchArg struct {
	Entry       anchorArg `json:"entry"`
	Exit        anchorArg `json:"exit"`
	SurfaceExit anchorArg `json:"surfaceExit"`
}

type helmArg struct {
	ControlAnchor *anchorArg `json:"controlAnchor"`
	Seated        bool       `json:"seated"`
	LeftHand      *anchorArg `json:"leftHand"`
	RightHand     *anchorArg `json:"rightHand"`
	Exit          *anchorArg `json:"exit"`
}

type spawnArg struct {
	ID      uint32     `json:"id"`
	Kind    string     `json:"kind" validate:"required,oneof=submarine submersible skimmer walker"`
	Name    string     `json:"name" validate:"required,max=64"`
	Hatches []hatchArg `json:"hatches" validate:"min=1,dive"`
	Helms   []helmArg  `json:"helms" validate:"dive"`
}

// ParseSpawn parses [definitionJSON]. A helm without controlAnchor is accepted;
// it refuses control at runtime. A non-zero "id" asks for that entity id.
func (p *Parser) ParseSpawn(args []string) (SpawnCommand, error) {
	var cmd SpawnCommand
	args, err := clean(":VEHICLE:SPAWN:", args, 1)
	if err != nil {
		return cmd, err
	}

	var raw spawnArg
	dec := json.NewDecoder(strings.NewReader(args[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return cmd, fmt.Errorf("error unmarshalling vehicle definition: %w", err)
	}
	if err := validate.Struct(raw); err != nil {
		return cmd, fmt.Errorf("invalid vehicle definition: %w", err)
	}

	kind, err := core.ParseVehicleKind(raw.Kind)
	if err != nil {
		return cmd, err
	}

	def := vehicle.Definition{Kind: kind, Name: raw.Name}
	for _, h := range raw.Hatches {
		def.Hatches = append(def.Hatches, core.HatchDefinition{
			Entry:       *h.Entry.anchor(),
			Exit:        *h.Exit.anchor(),
			SurfaceExit: *h.SurfaceExit.anchor(),
		})
	}
	for i, h := range raw.Helms {
		if h.ControlAnchor == nil {
			p.logger.Warn("Helm has no control anchor", "vehicle", raw.Name, "helm", i)
		}
		def.Helms = append(def.Helms, core.HelmDefinition{
			ControlAnchor: h.ControlAnchor.anchor(),
			Seated:        h.Seated,
			LeftHand:      h.LeftHand.anchor(),
			RightHand:     h.RightHand.anchor(),
			Exit:          h.Exit.anchor(),
		})
	}

	p.logger.Debug("Parsed vehicle definition",
		"kind", kind.String(), "name", def.Name,
		"hatches", len(def.Hatches), "helms", len(def.Helms))

	cmd.ID = core.EntityID(raw.ID)
	cmd.Definition = def
	return cmd, nil
}

// ParseEntity parses [id].
func (p *Parser) ParseEntity(command string, args []string) (EntityCommand, error) {
	args, err := clean(command, args, 1)
	if err != nil {
		return EntityCommand{}, err
	}
	id, err := parseEntityID(args[0])
	if err != nil {
		return EntityCommand{}, fmt.Errorf("%s: %w", command, err)
	}
	return EntityCommand{Entity: id}, nil
}

// ParseVehiclePosition parses [id, "[x,y,z]"].
func (p *Parser) ParseVehiclePosition(args []string) (PositionCommand, error) {
	var cmd PositionCommand
	args, err := clean(":VEHICLE:POSITION:", args, 2)
	if err != nil {
		return cmd, err
	}
	if cmd.Entity, err = parseEntityID(args[0]); err != nil {
		return cmd, err
	}
	if cmd.Position, err = parseVec3(args[1]); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// ParsePlayerPosition parses ["[x,y,z]"].
func (p *Parser) ParsePlayerPosition(args []string) (core.Vec3, error) {
	args, err := clean(":PLAYER:POSITION:", args, 1)
	if err != nil {
		return core.Vec3{}, err
	}
	return parseVec3(args[0])
}

// ParseHelm parses [id, helmIndex].
func (p *Parser) ParseHelm(args []string) (HelmCommand, error) {
	var cmd HelmCommand
	args, err := clean(":HELM:BEGIN:", args, 2)
	if err != nil {
		return cmd, err
	}
	if cmd.Entity, err = parseEntityID(args[0]); err != nil {
		return cmd, err
	}
	idx, err := parseIntFromFloat(args[1])
	if err != nil {
		return cmd, fmt.Errorf("helm index: %w", err)
	}
	if idx < 0 {
		return cmd, fmt.Errorf("helm index %d is negative", idx)
	}
	cmd.Index = int(idx)
	return cmd, nil
}

// ParseDock parses [id, suppressRelocation?, "[x,y,z]"?].
func (p *Parser) ParseDock(args []string) (DockCommand, error) {
	var cmd DockCommand
	args, err := clean(":DOCK:", args, 1)
	if err != nil {
		return cmd, err
	}
	if cmd.Entity, err = parseEntityID(args[0]); err != nil {
		return cmd, err
	}
	if cmd.SuppressRelocation, err = optionalBool(args, 1, false); err != nil {
		return cmd, err
	}
	if cmd.Exit, err = optionalVec3(args, 2); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// ParseUndock parses [id, boardPlayer?, suspendCollisions?, admin?]. Both
// boardPlayer and suspendCollisions default to true.
func (p *Parser) ParseUndock(args []string) (UndockCommand, error) {
	var cmd UndockCommand
	args, err := clean(":UNDOCK:", args, 1)
	if err != nil {
		return cmd, err
	}
	if cmd.Entity, err = parseEntityID(args[0]); err != nil {
		return cmd, err
	}
	if cmd.BoardPlayer, err = optionalBool(args, 1, true); err != nil {
		return cmd, err
	}
	if cmd.SuspendCollisions, err = optionalBool(args, 2, true); err != nil {
		return cmd, err
	}
	if cmd.Admin, err = optionalBool(args, 3, false); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// ParseToggle parses [id, bool].
func (p *Parser) ParseToggle(command string, args []string) (ToggleCommand, error) {
	var cmd ToggleCommand
	args, err := clean(command, args, 2)
	if err != nil {
		return cmd, err
	}
	if cmd.Entity, err = parseEntityID(args[0]); err != nil {
		return cmd, err
	}
	if cmd.On, err = parseBool(args[1]); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// PaintChannels are the paint channels accepted by ParsePaint.
var PaintChannels = []string{"base", "stripe", "name", "interior"}

// ParsePaint parses [id, channel, "#RRGGBB"].
func (p *Parser) ParsePaint(args []string) (PaintCommand, error) {
	var cmd PaintCommand
	args, err := clean(":VEHICLE:PAINT:", args, 3)
	if err != nil {
		return cmd, err
	}
	if cmd.Entity, err = parseEntityID(args[0]); err != nil {
		return cmd, err
	}
	cmd.Channel = strings.ToLower(args[1])
	known := false
	for _, c := range PaintChannels {
		known = known || c == cmd.Channel
	}
	if !known {
		return cmd, fmt.Errorf("unknown paint channel %q", args[1])
	}
	if cmd.Color, err = (core.SavedColor{RGB: args[2]}).Color(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// ParseRename parses [id, name].
func (p *Parser) ParseRename(args []string) (RenameCommand, error) {
	var cmd RenameCommand
	args, err := clean(":VEHICLE:RENAME:", args, 2)
	if err != nil {
		return cmd, err
	}
	if cmd.Entity, err = parseEntityID(args[0]); err != nil {
		return cmd, err
	}
	cmd.Name = args[1]
	if err := validate.Var(cmd.Name, "required,max=64"); err != nil {
		return cmd, fmt.Errorf("invalid vehicle name: %w", err)
	}
	return cmd, nil
}

// ParseBool parses [bool].
func (p *Parser) ParseBool(command string, args []string) (bool, error) {
	args, err := clean(command, args, 1)
	if err != nil {
		return false, err
	}
	return parseBool(args[0])
}

// ParseString parses [s] and rejects an empty value.
func (p *Parser) ParseString(command string, args []string) (string, error) {
	args, err := clean(command, args, 1)
	if err != nil {
		return "", err
	}
	if args[0] == "" {
		return "", fmt.Errorf("%s: empty argument", command)
	}
	return args[0], nil
}

// ParseLog parses [source, level, text...]. Extra arguments are joined with
// commas, as the host splits on them.
func (p *Parser) ParseLog(args []string) (LogCommand, error) {
	args, err := clean(":LOG:", args, 3)
	if err != nil {
		return LogCommand{}, err
	}
	return LogCommand{Source: args[0], Level: args[1], Text: strings.Join(args[2:], ",")}, nil
}
