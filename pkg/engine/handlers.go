package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Prompts and notices issued by the handlers.
const (
	promptMainMenu  = "What would you like to do?"
	promptSelectKit = "Select a Kit:"
	promptKitAction = "What would you like to do with this Kit?"
	promptEditKit   = "Don't like what you see? Do you want to edit this kit?"
	promptNoKits    = "No Kits found! Would you like to create one?"

	msgAuthFailed    = "Authorization failed!"
	msgAuthHint      = "Please check your API token and try again."
	msgUnexpected    = "The API returned an unexpected response."
	msgUnexpectedTip = "There may be something wrong with the API. Try again later."
)

func (d *Dispatcher) bindHandlers() map[Operation]handler {
	return map[Operation]handler{
		OpAuthenticate:   noInput(d.authenticate),
		OpMainMenu:       noInput(d.mainMenu),
		OpListAndChoose:  noInput(d.listAndChoose),
		OpChooseAction:   withKitID(OpChooseAction, d.chooseAction),
		OpPostViewPrompt: withKitID(OpPostViewPrompt, d.postViewPrompt),
		OpCollectFields:  withOptionalKitID(OpCollectFields, d.collectFields),
		OpView:           withKitID(OpView, d.view),
		OpSave:           withFields(OpSave, d.save),
		OpDelete:         withKitID(OpDelete, d.delete),
	}
}

// Adapters from typed handlers to the uniform handler signature.

func noInput(fn func(context.Context) (Result, error)) handler {
	return func(ctx context.Context, _ Result) (Result, error) {
		return fn(ctx)
	}
}

func withKitID(op Operation, fn func(context.Context, KitID) (Result, error)) handler {
	return func(ctx context.Context, in Result) (Result, error) {
		id, ok := in.KitID()
		if !ok {
			return None(), shapeError(op, "kit id", in)
		}
		return fn(ctx, id)
	}
}

func withOptionalKitID(op Operation, fn func(context.Context, *KitID) (Result, error)) handler {
	return func(ctx context.Context, in Result) (Result, error) {
		if in.IsNone() {
			return fn(ctx, nil)
		}
		id, ok := in.KitID()
		if !ok {
			return None(), shapeError(op, "kit id or none", in)
		}
		return fn(ctx, &id)
	}
}

func withFields(op Operation, fn func(context.Context, Fields) (Result, error)) handler {
	return func(ctx context.Context, in Result) (Result, error) {
		fields, ok := in.Fields()
		if !ok {
			return None(), shapeError(op, "fields", in)
		}
		return fn(ctx, fields)
	}
}

func shapeError(op Operation, want string, got Result) error {
	return NewInternalError(fmt.Sprintf("%s expects %s, got %s", op, want, got.kind()), nil).
		WithOperation(op.String()).
		WithCode(ErrCodeUnexpectedType)
}

// authenticate checks the credential by listing kits. Only an authentication
// failure stops the session.
func (d *Dispatcher) authenticate(ctx context.Context) (Result, error) {
	if _, err := d.gateway.List(ctx); err != nil {
		if IsAuthentication(err) {
			return None(), err
		}
		d.logger.Warn().Err(err).Msg("Credential check did not complete, continuing")
		d.reportFailure(err)
	}
	return None(), nil
}

func (d *Dispatcher) mainMenu(ctx context.Context) (Result, error) {
	next, err := choose(ctx, d.surface, promptMainMenu, []Choice[Operation]{
		{Label: "Interact with Existing Kits", Value: OpListAndChoose},
		{Label: "Create a new Kit", Value: OpCollectFields},
		{Label: "Quit", Value: OpTerminate},
	})
	if err != nil {
		return None(), err
	}

	d.queue.PushFront(next)
	return None(), nil
}

// listAndChoose lists kits, resolves their names and lets the user pick one.
// Any failed request ends the session after it is shown.
func (d *Dispatcher) listAndChoose(ctx context.Context) (Result, error) {
	ids, err := d.gateway.List(ctx)
	if err != nil {
		return d.abortListing(err)
	}

	if len(ids) == 0 {
		create, err := d.surface.Confirm(ctx, promptNoKits)
		if err != nil {
			return None(), err
		}
		if create {
			d.queue.PushFront(OpCollectFields)
		} else {
			d.queue.PushFront(OpTerminate)
		}
		return None(), nil
	}

	kits, err := d.fetchKits(ctx, ids)
	if err != nil {
		return d.abortListing(err)
	}

	id, err := choose(ctx, d.surface, promptSelectKit, kitChoices(ids, kits))
	if err != nil {
		return None(), err
	}

	d.queue.PushFront(OpChooseAction)
	return Some(id), nil
}

func (d *Dispatcher) abortListing(err error) (Result, error) {
	if IsAuthentication(err) {
		return None(), err
	}
	d.reportFailure(err)
	d.queue.PushFront(OpTerminate)
	return None(), nil
}

// fetchKits fetches every kit in ids with bounded parallelism. The returned
// slice is index-aligned with ids.
func (d *Dispatcher) fetchKits(ctx context.Context, ids []KitID) ([]*Kit, error) {
	kits := make([]*Kit, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.fetchConcurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kit, err := d.gateway.Get(gctx, id)
			if err != nil {
				return err
			}
			kits[i] = kit
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return kits, nil
}

// kitChoices labels each kit with its name. Names shared by several kits, and
// empty names, are disambiguated with the kit ID.
func kitChoices(ids []KitID, kits []*Kit) []Choice[KitID] {
	seen := make(map[string]int, len(kits))
	for _, kit := range kits {
		if kit != nil {
			seen[kit.Name]++
		}
	}

	choices := make([]Choice[KitID], len(ids))
	for i, id := range ids {
		label := string(id)
		if kit := kits[i]; kit != nil && kit.Name != "" {
			label = kit.Name
			if seen[kit.Name] > 1 {
				label = fmt.Sprintf("%s (%s)", kit.Name, id)
			}
		}
		choices[i] = Choice[KitID]{Label: label, Value: id}
	}
	return choices
}

func (d *Dispatcher) chooseAction(ctx context.Context, id KitID) (Result, error) {
	next, err := choose(ctx, d.surface, promptKitAction, []Choice[[]Operation]{
		{Label: "View Kit info", Value: []Operation{OpView, OpPostViewPrompt}},
		{Label: "Update Kit", Value: []Operation{OpCollectFields}},
		{Label: "Delete Kit", Value: []Operation{OpDelete}},
	})
	if err != nil {
		return None(), err
	}

	d.queue.PushFront(next...)
	return Some(id), nil
}

func (d *Dispatcher) postViewPrompt(ctx context.Context, id KitID) (Result, error) {
	edit, err := d.surface.Confirm(ctx, promptEditKit)
	if err != nil {
		return None(), err
	}
	if edit {
		d.queue.PushFront(OpCollectFields)
	}
	return Some(id), nil
}

// collectFields gathers kit attributes. With an id the fields describe an
// update and the kit is offered for review again after saving.
func (d *Dispatcher) collectFields(ctx context.Context, id *KitID) (Result, error) {
	fields, err := d.surface.CollectFields(ctx)
	if err != nil {
		return None(), err
	}
	if fields == nil {
		fields = Fields{}
	}

	if id == nil {
		fields = fields.Clone()
		delete(fields, ReservedIDKey)
		d.queue.PushFront(OpSave)
		return Some(fields), nil
	}

	d.queue.PushFront(OpSave, OpPostViewPrompt)
	return Some(fields.WithID(*id)), nil
}

func (d *Dispatcher) view(ctx context.Context, id KitID) (Result, error) {
	kit, err := d.gateway.Get(ctx, id)
	if err != nil {
		if IsAuthentication(err) {
			return None(), err
		}
		d.reportFailure(err)
		return Some(id), nil
	}

	d.surface.ShowResource(kit)
	return Some(id), nil
}

// save creates or updates a kit. It returns the updated kit's id, or none
// after a create.
func (d *Dispatcher) save(ctx context.Context, fields Fields) (Result, error) {
	id, update, rest := fields.SplitID()

	var target *KitID
	out := None()
	if update {
		target = &id
		out = Some(id)
	}

	kit, err := d.gateway.Save(ctx, rest, target)
	if err != nil {
		if IsAuthentication(err) {
			return None(), err
		}
		d.reportFailure(err)
		return out, nil
	}

	if !update && kit != nil {
		d.note = "created kit " + kit.ID
		d.logger.Info().Str("kit_id", kit.ID).Msg("Kit created")
	}
	d.surface.ShowResource(kit)
	return out, nil
}

func (d *Dispatcher) delete(ctx context.Context, id KitID) (Result, error) {
	if err := d.gateway.Delete(ctx, id); err != nil {
		if IsAuthentication(err) {
			return None(), err
		}
		d.reportFailure(err)
		return None(), nil
	}

	d.note = "deleted kit " + string(id)
	d.surface.ShowDeleted()
	return None(), nil
}

// reportFailure shows a non-fatal gateway error to the user.
func (d *Dispatcher) reportFailure(err error) {
	if IsContract(err) {
		d.surface.Warn(msgUnexpected)
		d.surface.Warn(msgUnexpectedTip)
		return
	}
	d.surface.ShowError(Message(err))
}
