package nlsql

// SchemaContext describes the election table to the model: columns, value conventions and
// party classification. It names the default table; NewPromptBuilder substitutes another.
const SchemaContext = `
DATABASE SCHEMA for table "election_loksabha_data":

Columns (type, notes):
- "Year" (bigint): election years 1991, 1996, 1998, 1999, 2004, 2009, 2014, 2019
- "State_Name" (text): e.g. 'Maharashtra', 'Uttar_Pradesh', 'Karnataka', 'Tamil_Nadu'
  Multi-word states use underscores ('Uttar_Pradesh', never 'Uttar Pradesh')
- "Constituency_Name" (text): upper case, e.g. 'NANDURBAR', 'MUMBAI NORTH', 'DELHI SOUTH'
- "Party" (text): short codes, e.g. 'BJP', 'INC', 'AITC', 'DMK', 'BSP', 'SP', 'TDP'
- "Candidate" (text): candidate full name
- "Sex" (text): 'Male', 'Female', 'Unknown', 'O'
- "Votes" (bigint): votes received by the candidate
- "Is_Winner" (bigint): 1 for the winner, 0 otherwise
- "Position" (bigint): finishing rank, 1 = winner, 2 = runner-up
- "Turnout_Percentage" (double precision): constituency turnout, 0-100
- "Vote_Share_Percentage" (double precision): candidate vote share
- "Margin" (bigint): winning margin in votes
- "Margin_Percentage" (double precision): winning margin as a percentage
- "Electors" (bigint): registered electors in the constituency
- "Valid_Votes" (bigint): valid votes cast in the constituency
- "Party_Type_TCPD" (text): 'National Party', 'State Party', 'Local Party'
- "MyNeta_education" (text): candidate education level

NOTES:
1. Each row is ONE CANDIDATE in one constituency and year, so a constituency has many rows
2. Seats won by a party: COUNT(*) with "Is_Winner" = 1 AND "Party" = 'BJP'
3. Constituency winner: "Is_Winner" = 1
4. Turnout is precomputed in "Turnout_Percentage"
5. The latest election year is 2019
6. State names with special characters keep them: 'Jammu_&_Kashmir', 'West_Bengal'

PARTY CLASSIFICATION:
National parties are exactly 'AAP', 'BJP', 'INC', 'BSP', 'CPI', 'CPI-M', 'NCP'.
Every other party is regional, e.g. 'AITC' (West Bengal), 'DMK' and 'ADMK' (Tamil Nadu),
'SP' (Uttar Pradesh), 'TDP' (Andhra Pradesh), 'BJD' (Odisha), 'SHS' (Maharashtra),
'JD-U' (Bihar).
Classify with: CASE WHEN "Party" IN ('AAP', 'BJP', 'INC', 'BSP', 'CPI', 'CPI-M', 'NCP') THEN 'National' ELSE 'Regional' END

SQL RULES:
- Window functions (ROW_NUMBER, RANK, LAG, LEAD) may appear only in the SELECT list, never in WHERE or JOIN conditions
- Compare years with CTEs (WITH ... AS (...)), one CTE per year
- For "consecutive elections" use the two most recent years, 2014 and 2019
`

// Example pairs a question with a statement that answers it.
type Example struct {
	Question string
	SQL      string
}

// DefaultExamples are included in every generation prompt.
var DefaultExamples = []Example{
	{
		Question: "Which party won the most seats in 2019?",
		SQL:      `SELECT "Party", COUNT(*) AS seats FROM election_loksabha_data WHERE "Is_Winner" = 1 AND "Year" = 2019 GROUP BY "Party" ORDER BY seats DESC LIMIT 10;`,
	},
	{
		Question: "What was the voter turnout in Maharashtra in 2014?",
		SQL:      `SELECT "State_Name", "Year", AVG("Turnout_Percentage") AS avg_turnout FROM election_loksabha_data WHERE "State_Name" = 'Maharashtra' AND "Year" = 2014 GROUP BY "State_Name", "Year";`,
	},
	{
		Question: "Which state had the highest voter turnout in 2019?",
		SQL:      `SELECT "State_Name", AVG("Turnout_Percentage") AS avg_turnout FROM election_loksabha_data WHERE "Year" = 2019 GROUP BY "State_Name" ORDER BY avg_turnout DESC LIMIT 1;`,
	},
	{
		Question: "Which party gained or lost the most seats between consecutive elections?",
		SQL:      `WITH seats_2014 AS (SELECT "Party", COUNT(*) AS seats FROM election_loksabha_data WHERE "Year" = 2014 AND "Is_Winner" = 1 GROUP BY "Party"), seats_2019 AS (SELECT "Party", COUNT(*) AS seats FROM election_loksabha_data WHERE "Year" = 2019 AND "Is_Winner" = 1 GROUP BY "Party") SELECT COALESCE(a."Party", b."Party") AS "Party", COALESCE(a.seats, 0) AS seats_2014, COALESCE(b.seats, 0) AS seats_2019, COALESCE(b.seats, 0) - COALESCE(a.seats, 0) AS seat_change FROM seats_2014 a FULL OUTER JOIN seats_2019 b ON a."Party" = b."Party" ORDER BY ABS(COALESCE(b.seats, 0) - COALESCE(a.seats, 0)) DESC LIMIT 10;`,
	},
	{
		Question: "How has the vote share of national vs regional parties changed over time?",
		SQL:      `SELECT "Year", CASE WHEN "Party" IN ('AAP', 'BJP', 'INC', 'BSP', 'CPI', 'CPI-M', 'NCP') THEN 'National' ELSE 'Regional' END AS party_type, SUM("Votes") AS total_votes, ROUND(AVG("Vote_Share_Percentage")::numeric, 2) AS avg_vote_share_pct, COUNT(DISTINCT "Party") AS num_parties FROM election_loksabha_data GROUP BY "Year", party_type ORDER BY "Year", party_type LIMIT 100;`,
	},
	{
		Question: "How many women contested in 2019?",
		SQL:      `SELECT COUNT(*) AS total_women FROM election_loksabha_data WHERE "Sex" = 'Female' AND "Year" = 2019 LIMIT 1;`,
	},
}
