package tray

import (
	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"aura/wellness-agent/internal/engine"
)

// Run blocks inside the systray event loop, translating menu clicks into
// engine commands. Quit submits a shutdown command; the engine's Done channel
// drives process exit as usual.
func Run(submit func(engine.Command), logger *zap.Logger) {
	onReady := func() {
		systray.SetTitle("Aura")
		systray.SetTooltip("Aura wellness agent")

		startItem := systray.AddMenuItem("Start Session", "Start a work session")
		pauseItem := systray.AddMenuItem("Pause Session", "Pause the current session")
		resumeItem := systray.AddMenuItem("Resume Session", "Resume a paused session")
		endItem := systray.AddMenuItem("End Session", "End the current session")
		systray.AddSeparator()
		hydrationItem := systray.AddMenuItem("Log Water", "Log a glass of water")
		systray.AddSeparator()
		quitItem := systray.AddMenuItem("Quit", "Stop the agent")

		go func() {
			for {
				select {
				case <-startItem.ClickedCh:
					submit(engine.Command{Cmd: engine.CmdStartSession})
				case <-pauseItem.ClickedCh:
					submit(engine.Command{Cmd: engine.CmdPauseSession})
				case <-resumeItem.ClickedCh:
					submit(engine.Command{Cmd: engine.CmdResumeSession})
				case <-endItem.ClickedCh:
					submit(engine.Command{Cmd: engine.CmdEndSession})
				case <-hydrationItem.ClickedCh:
					submit(engine.Command{Cmd: engine.CmdLogHydration})
				case <-quitItem.ClickedCh:
					submit(engine.Command{Cmd: engine.CmdShutdown})
					systray.Quit()
					return
				}
			}
		}()
	}

	onExit := func() {
		logger.Info("Tray closed")
	}

	systray.Run(onReady, onExit)
}
