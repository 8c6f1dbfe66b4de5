package dice

// Computations reports how many times c computed its distribution.
func Computations(c *ComplexDie) int { return c.computations }
