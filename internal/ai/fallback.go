package ai

import "math/rand/v2"

var fallbackResponses = []string{
	"¡Uy! Ahora mismo no consigo conectar con mi cerebro en la nube. Dame un momento y vuelve a intentarlo, por favor.",
	"Perdona, parece que el modelo que elegiste está ocupado. Prueba de nuevo en unos segundos o cambia de modelo en el selector.",
	"Lo siento, no he podido generar una respuesta esta vez. Mientras lo arreglo, ¿quieres reformular tu pregunta?",
	"Estoy en modo demostración temporalmente y no puedo responder con detalle. Inténtalo otra vez dentro de un rato.",
	"Algo falló al procesar tu mensaje, pero sigo aquí. Vuelve a enviarlo y lo intento de nuevo.",
	"Hmm, la conexión con el modelo se ha interrumpido. Tu mensaje está guardado, así que puedes reintentarlo cuando quieras.",
}

// PickFallback returns one of the canned replies, chosen uniformly at random.
func PickFallback() string {
	return fallbackResponses[rand.IntN(len(fallbackResponses))]
}

// FallbackResponses returns a copy of the canned reply pool.
func FallbackResponses() []string {
	out := make([]string, len(fallbackResponses))
	copy(out, fallbackResponses)
	return out
}

// IsFallback reports whether text is one of the canned replies.
func IsFallback(text string) bool {
	for _, r := range fallbackResponses {
		if r == text {
			return true
		}
	}
	return false
}
