package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/tui"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
)

type DoctorCmd struct{}

func (c *DoctorCmd) Run(rt *runtime) error {
	ctx := context.Background()
	snap, err := rt.controller.Start(ctx, monitoring.RoleDoctor)
	if err != nil {
		return err
	}
	defer endSession(rt, snap.SessionID)

	for {
		var reg tui.Registration
		if err := tui.RegistrationForm(&reg).Run(); err != nil {
			return aborted(err)
		}
		res, err := rt.controller.Handle(ctx, snap.SessionID, reg.Event())
		if err != nil {
			report(err)
			continue
		}
		show(res.Snapshot)

		if err := setupMonitoring(ctx, rt, snap.SessionID); err != nil {
			return aborted(err)
		}
		if !ask("Register another patient?") {
			return nil
		}
	}
}

// setupMonitoring runs the branching step until the doctor leaves it.
func setupMonitoring(ctx context.Context, rt *runtime, sessionID string) error {
	for {
		var choice string
		if err := tui.SetupChoiceForm(&choice).Run(); err != nil {
			return err
		}
		switch choice {
		case tui.ChoiceCancel:
			_, err := rt.controller.Handle(ctx, sessionID, workflow.Cancel{})
			return err

		case tui.ChoiceAI:
			res, err := rt.controller.Handle(ctx, sessionID, workflow.TriggerAI{})
			if err != nil {
				report(err)
				continue
			}
			show(res.Snapshot)
			_, err = rt.controller.Handle(ctx, sessionID, workflow.Cancel{})
			return err

		case tui.ChoiceManual:
			if _, err := rt.controller.Handle(ctx, sessionID, workflow.ChooseManual{}); err != nil {
				report(err)
				continue
			}
			params, err := collectParameters()
			if err != nil {
				return err
			}
			res, err := rt.controller.Handle(ctx, sessionID, workflow.SubmitManual{Parameters: params})
			if err != nil {
				report(err)
				continue
			}
			show(res.Snapshot)
			return nil
		}
	}
}

func collectParameters() ([]form.ManualParameter, error) {
	var params []form.ManualParameter
	for {
		var p tui.Parameter
		if err := tui.ParameterForm(&p).Run(); err != nil {
			return nil, err
		}
		params = append(params, p.Manual())
		if !p.More {
			return params, nil
		}
	}
}

type PatientCmd struct{}

func (c *PatientCmd) Run(rt *runtime) error {
	ctx := context.Background()
	snap, err := rt.controller.Start(ctx, monitoring.RolePatient)
	if err != nil {
		return err
	}
	defer endSession(rt, snap.SessionID)

	for snap.Step == workflow.StepLoggedOut {
		var login tui.Login
		if err := tui.LoginForm(&login).Run(); err != nil {
			return aborted(err)
		}
		res, err := rt.controller.Handle(ctx, snap.SessionID, login.Event())
		if err != nil {
			report(err)
			continue
		}
		snap = res.Snapshot
	}

	for snap.Step == workflow.StepSchemaPending {
		show(snap)
		if !ask("Load your monitoring parameters now?") {
			return nil
		}
		res, err := rt.controller.Handle(ctx, snap.SessionID, workflow.FetchSchema{})
		if err != nil {
			report(err)
			continue
		}
		snap = res.Snapshot
	}

	for {
		f, answers := tui.WidgetForm(snap.State.Patient.Widgets, snap.State.Patient.Captured)
		if err := f.Run(); err != nil {
			return aborted(err)
		}
		inputs, err := answers.Inputs()
		if err != nil {
			report(err)
			continue
		}
		res, err := rt.controller.Handle(ctx, snap.SessionID, workflow.SubmitAll{Inputs: inputs})
		if err != nil {
			report(err)
			if !ask("Try again?") {
				break
			}
			continue
		}
		snap = res.Snapshot
		show(snap)
		if !ask("Submit another reading?") {
			break
		}
	}

	_, err = rt.controller.Handle(ctx, snap.SessionID, workflow.Logout{})
	return err
}

func endSession(rt *runtime, id string) {
	if err := rt.controller.End(context.Background(), id); err != nil {
		rt.logger.Debug("ending session %s: %v", id, err)
	}
}

func ask(question string) bool {
	var yes bool
	if err := huh.NewConfirm().Title(question).Affirmative("Yes").Negative("No").Value(&yes).Run(); err != nil {
		return false
	}
	return yes
}

func show(snap workflow.Snapshot) {
	fmt.Print(tui.Summary(snap, time.Now()))
}

func report(err error) {
	fmt.Println(monitoring.UserMessage(err))
}

// aborted treats a user abort (ctrl+c) as a clean exit.
func aborted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	return err
}
